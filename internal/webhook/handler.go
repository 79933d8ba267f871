package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"callscreen-platform/internal/calls"
	"callscreen-platform/internal/provider"
	"callscreen-platform/pkg/logger"

	"github.com/gin-gonic/gin"
)

const maxBodyBytes = 5 << 20

// CallStore persists call records.
type CallStore interface {
	Upsert(ctx context.Context, conversationID, agentID, status string, raw []byte) (calls.CallRecord, error)
}

// Notifier enqueues new-call notifications once a record is stored.
type Notifier interface {
	EnqueueNewCall(ctx context.Context, rec calls.CallRecord) (int, error)
}

// Handler serves POST /api/inbound.
//
// The handler only verifies, fetches and stores. Notification delivery runs
// later from the outbox.
type Handler struct {
	Secret        string
	TargetAgentID string

	Calls CallStore
	// Provider is optional. When nil the webhook data object is stored as the
	// conversation payload.
	Provider provider.ConversationProvider
	// Notifier is optional. Its EnqueueNewCall must be idempotent per call.
	Notifier Notifier

	Now func() time.Time
}

// event is the webhook envelope. Data stays raw so it can be stored verbatim.
type event struct {
	Type           string          `json:"type"`
	EventTimestamp int64           `json:"event_timestamp"`
	Data           json.RawMessage `json:"data"`
}

type eventData struct {
	ConversationID string `json:"conversation_id"`
	AgentID        string `json:"agent_id"`
	Status         string `json:"status"`
}

func (h Handler) HandleInbound(c *gin.Context) {
	log := logger.FromGin(c)

	if h.Now == nil {
		h.Now = time.Now
	}
	if h.Calls == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "call store not configured"})
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"error": "payload too large"})
			return
		}
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}

	if !VerifySignature(body, c.GetHeader(SignatureHeader), h.Secret, h.Now()) {
		log.Warn("webhook signature rejected")
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
		return
	}

	var ev event
	if err := json.Unmarshal(body, &ev); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid JSON"})
		return
	}
	trimmed := bytes.TrimSpace(ev.Data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "missing data"})
		return
	}
	var data eventData
	if err := json.Unmarshal(trimmed, &data); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid data"})
		return
	}
	if data.ConversationID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "missing conversation_id"})
		return
	}

	log = log.With("conversation_id", data.ConversationID, "agent_id", data.AgentID)
	if h.TargetAgentID != "" && data.AgentID != h.TargetAgentID {
		log.Info("webhook ignored for other agent")
		c.JSON(http.StatusOK, gin.H{"status": "ignored", "reason": "agent_id mismatch"})
		return
	}

	ctx := c.Request.Context()
	raw := []byte(trimmed)
	if h.Provider != nil {
		raw, err = h.Provider.GetConversationDetails(ctx, data.ConversationID)
		if err != nil {
			log.Error("conversation fetch failed", "err", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "conversation fetch failed"})
			return
		}
	}

	rec, err := h.Calls.Upsert(ctx, data.ConversationID, data.AgentID, data.Status, raw)
	if err != nil {
		if errors.Is(err, calls.ErrInvalidArgument) {
			log.Warn("call payload rejected", "err", err)
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid conversation payload"})
			return
		}
		log.Error("call upsert failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to store call"})
		return
	}

	if h.Notifier != nil {
		// The call is already stored. Failing here makes the provider redeliver,
		// and the upsert and enqueue are both safe to repeat.
		n, err := h.Notifier.EnqueueNewCall(ctx, rec)
		if err != nil {
			log.Error("new call notification enqueue failed", "call_record_id", rec.ID, "err", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to queue notifications"})
			return
		}
		log.Debug("new call notifications enqueued", "count", n)
	}

	log.Info("call processed", "call_record_id", rec.ID, "qualified", string(rec.Qualified))
	c.JSON(http.StatusOK, gin.H{"status": "processed", "callRecord": rec})
}
