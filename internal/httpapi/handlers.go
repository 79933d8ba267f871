package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"callscreen-platform/internal/auth"
	"callscreen-platform/internal/calls"
	"callscreen-platform/internal/delivery"
	"callscreen-platform/internal/reporting"
	"callscreen-platform/internal/scheduler"
	"callscreen-platform/internal/users"
	"callscreen-platform/pkg/logger"

	"github.com/gin-gonic/gin"
)

type UserStore interface {
	FindByEmail(ctx context.Context, email string) (users.User, error)
	FindByID(ctx context.Context, id string) (users.User, error)
}

// SchedulerControl is the operator surface of scheduler.Scheduler.
type SchedulerControl interface {
	Start(ctx context.Context) error
	Stop()
	Refresh(ctx context.Context) error
	RunNow(ctx context.Context, configID string) (scheduler.DispatchResult, error)
	Status() scheduler.Status
}

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Auth       *auth.Manager
	Users      UserStore
	Calls      *calls.Service
	Reports    *reporting.ConfigService
	Deliveries *delivery.Logger
	Scheduler  SchedulerControl

	Now func() time.Time
}

func (h Handlers) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

// --- Auth ---

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Login checks email and password against users and issues a token pair.
func (h Handlers) Login(c *gin.Context) {
	if h.Auth == nil || h.Users == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "auth not configured"})
		return
	}
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.Email == "" || req.Password == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "email and password required"})
		return
	}

	u, err := h.Users.FindByEmail(c.Request.Context(), req.Email)
	if err != nil && !errors.Is(err, users.ErrNotFound) {
		writeError(c, err)
		return
	}
	// Same response for unknown email and wrong password.
	if err != nil || !u.CheckPassword(req.Password) {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	pair, err := h.Auth.IssuePair(h.now(), u.ID, u.Role)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, pair)
}

// Refresh exchanges a refresh token for a new pair. The role is re-read so a
// demoted user loses access at the next refresh.
func (h Handlers) Refresh(c *gin.Context) {
	if h.Auth == nil || h.Users == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "auth not configured"})
		return
	}
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.RefreshToken == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "refresh_token required"})
		return
	}
	claims, err := h.Auth.Verify(req.RefreshToken, auth.TokenTypeRefresh, h.now())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}
	u, err := h.Users.FindByID(c.Request.Context(), claims.UserID)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}
	pair, err := h.Auth.IssuePair(h.now(), u.ID, u.Role)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, pair)
}

func (h Handlers) Me(c *gin.Context) {
	uid, _ := auth.UserID(c.Request.Context())
	role, _ := auth.Role(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"user_id": uid, "role": role})
}

// writeError maps service errors to status codes. Unexpected errors are
// logged and reported without detail.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, calls.ErrNotFound),
		errors.Is(err, reporting.ErrNotFound),
		errors.Is(err, users.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, calls.ErrInvalidArgument),
		errors.Is(err, reporting.ErrInvalidConfig),
		errors.Is(err, delivery.ErrInvalidAttempt):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		logger.FromGin(c).Error("request failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func queryLimit(c *gin.Context) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
		return 0, false
	}
	return n, true
}
