package main

import (
	"callboard/internal/events"
	"callboard/internal/httpapi"
	"callboard/internal/ratelimit"

	"github.com/gin-gonic/gin"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers delegate to internal modules.
func registerRoutes(r *gin.Engine, h httpapi.Handlers, limiter *ratelimit.Limiter) {
	r.GET("/healthz", h.Healthz)

	// Live event stream for dashboard clients.
	r.GET("/ws", events.WSHandler(h.Hub))

	v1 := r.Group("/api")
	{
		callsGroup := v1.Group("/calls")
		{
			callsGroup.GET("", h.ListCalls)
			callsGroup.GET("/export", h.ExportCalls)
		}

		dashboard := v1.Group("/dashboard")
		{
			dashboard.GET("/summary", h.DashboardSummary)
			dashboard.GET("/timeseries", h.DashboardTimeseries)
		}

		settings := v1.Group("/settings/provider")
		{
			settings.GET("", h.GetProviderSettings)
			settings.PUT("", h.UpdateProviderSettings)
			settings.POST("/test", h.TestProviderConnection)
		}

		// Manual triggers hit the provider API, so they are rate limited.
		sync := v1.Group("/sync")
		sync.Use(httpapi.RateLimit(limiter, "sync"))
		{
			sync.POST("/trigger", h.TriggerSync)
			sync.POST("/debug", h.DebugSync)
		}

		leads := v1.Group("/team-leads")
		{
			leads.GET("", h.ListTeamLeads)
			leads.POST("", h.CreateTeamLead)
			leads.PUT("/:id", h.UpdateTeamLead)
			leads.DELETE("/:id", h.DeleteTeamLead)
		}
		v1.GET("/team-lead-categories", h.ListCategories)

		v1.GET("/audit", h.ListAuditEvents)
	}
}
