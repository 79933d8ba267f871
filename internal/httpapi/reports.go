package httpapi

import (
	"context"
	"net/http"

	"callscreen-platform/internal/delivery"
	"callscreen-platform/internal/reporting"
	"callscreen-platform/pkg/logger"

	"github.com/gin-gonic/gin"
)

// --- Report configs ---

func (h Handlers) ListReportConfigs(c *gin.Context) {
	if h.Reports == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "reports not configured"})
		return
	}
	out, err := h.Reports.List(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"report_configs": out})
}

func (h Handlers) GetReportConfig(c *gin.Context) {
	if h.Reports == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "reports not configured"})
		return
	}
	cfg, err := h.Reports.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

func (h Handlers) CreateReportConfig(c *gin.Context) {
	if h.Reports == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "reports not configured"})
		return
	}
	var in reporting.ReportConfig
	if err := c.ShouldBindJSON(&in); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	cfg, err := h.Reports.Create(c.Request.Context(), in)
	if err != nil {
		writeError(c, err)
		return
	}
	h.refreshScheduler(c)
	c.JSON(http.StatusCreated, cfg)
}

func (h Handlers) UpdateReportConfig(c *gin.Context) {
	if h.Reports == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "reports not configured"})
		return
	}
	var in reporting.ReportConfig
	if err := c.ShouldBindJSON(&in); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	cfg, err := h.Reports.Update(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		writeError(c, err)
		return
	}
	h.refreshScheduler(c)
	c.JSON(http.StatusOK, cfg)
}

func (h Handlers) DeleteReportConfig(c *gin.Context) {
	if h.Reports == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "reports not configured"})
		return
	}
	if err := h.Reports.Delete(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	h.refreshScheduler(c)
	c.Status(http.StatusNoContent)
}

// refreshScheduler keeps the status snapshot current after an edit. The
// config table is the source of truth, so a failure here is only logged.
func (h Handlers) refreshScheduler(c *gin.Context) {
	if h.Scheduler == nil {
		return
	}
	if err := h.Scheduler.Refresh(c.Request.Context()); err != nil {
		logger.FromGin(c).Warn("scheduler refresh after config change failed", "err", err)
	}
}

// --- Email logs ---

func (h Handlers) ListEmailLogs(c *gin.Context) {
	if h.Deliveries == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "email logs not configured"})
		return
	}
	limit, ok := queryLimit(c)
	if !ok {
		return
	}
	out, err := h.Deliveries.List(c.Request.Context(), delivery.Filter{
		ReportConfigID: c.Query("report_config_id"),
		Status:         delivery.Status(c.Query("status")),
		Limit:          limit,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"email_logs": out})
}

// --- Scheduler ---

func (h Handlers) SchedulerStatus(c *gin.Context) {
	if h.Scheduler == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "scheduler not configured"})
		return
	}
	c.JSON(http.StatusOK, h.Scheduler.Status())
}

func (h Handlers) StartScheduler(c *gin.Context) {
	if h.Scheduler == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "scheduler not configured"})
		return
	}
	// The loop must outlive this request.
	if err := h.Scheduler.Start(context.WithoutCancel(c.Request.Context())); err != nil {
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, h.Scheduler.Status())
}

func (h Handlers) StopScheduler(c *gin.Context) {
	if h.Scheduler == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "scheduler not configured"})
		return
	}
	h.Scheduler.Stop()
	c.JSON(http.StatusOK, h.Scheduler.Status())
}

func (h Handlers) RefreshScheduler(c *gin.Context) {
	if h.Scheduler == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "scheduler not configured"})
		return
	}
	if err := h.Scheduler.Refresh(c.Request.Context()); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.Scheduler.Status())
}

func (h Handlers) RunReportNow(c *gin.Context) {
	if h.Scheduler == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "scheduler not configured"})
		return
	}
	res, err := h.Scheduler.RunNow(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
