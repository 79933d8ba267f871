package httpapi

import (
	"net/http"

	"callscreen-platform/internal/calls"

	"github.com/gin-gonic/gin"
)

func (h Handlers) ListCalls(c *gin.Context) {
	if h.Calls == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "calls not configured"})
		return
	}
	limit, ok := queryLimit(c)
	if !ok {
		return
	}
	out, err := h.Calls.Query(c.Request.Context(), calls.Filter{
		AgentID: c.Query("agent_id"),
		Search:  c.Query("search"),
		Limit:   limit,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"calls": out})
}

func (h Handlers) CallStats(c *gin.Context) {
	if h.Calls == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "calls not configured"})
		return
	}
	st, err := h.Calls.Stats(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h Handlers) GetCall(c *gin.Context) {
	if h.Calls == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "calls not configured"})
		return
	}
	rec, err := h.Calls.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

type qualificationRequest struct {
	Qualified string `json:"qualified"`
}

func (h Handlers) SetQualification(c *gin.Context) {
	if h.Calls == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "calls not configured"})
		return
	}
	var req qualificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	q, err := calls.ParseQualification(req.Qualified)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "qualified must be qualified, not_qualified or pending"})
		return
	}
	rec, err := h.Calls.SetQualification(c.Request.Context(), c.Param("id"), q)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}
