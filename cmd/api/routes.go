package main

import (
	"net/http"

	"callscreen-platform/internal/httpapi"
	"callscreen-platform/internal/rbac"
	"callscreen-platform/internal/webhook"

	"github.com/gin-gonic/gin"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, h httpapi.Handlers, inbound webhook.Handler, authMW gin.HandlerFunc) {
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Provider webhook. Authenticated by HMAC signature, not JWT.
	r.POST("/api/inbound", inbound.HandleInbound)

	r.POST("/v1/auth/login", h.Login)
	r.POST("/v1/auth/refresh", h.Refresh)

	v1 := r.Group("/v1")
	v1.Use(authMW)
	v1.Use(rbac.RequireAnyRole(rbac.RoleViewer))
	{
		v1.GET("/me", h.Me)

		v1.GET("/calls", h.ListCalls)
		v1.GET("/calls/stats", h.CallStats)
		v1.GET("/calls/:id", h.GetCall)

		v1.GET("/report-configs", h.ListReportConfigs)
		v1.GET("/report-configs/:id", h.GetReportConfig)

		v1.GET("/email-logs", h.ListEmailLogs)
		v1.GET("/scheduler/status", h.SchedulerStatus)
	}

	admin := v1.Group("")
	admin.Use(rbac.RequireAdmin())
	{
		admin.PATCH("/calls/:id/qualification", h.SetQualification)

		admin.POST("/report-configs", h.CreateReportConfig)
		admin.PUT("/report-configs/:id", h.UpdateReportConfig)
		admin.DELETE("/report-configs/:id", h.DeleteReportConfig)

		admin.POST("/scheduler/start", h.StartScheduler)
		admin.POST("/scheduler/stop", h.StopScheduler)
		admin.POST("/scheduler/refresh", h.RefreshScheduler)
		admin.POST("/scheduler/run/:id", h.RunReportNow)
	}
}
