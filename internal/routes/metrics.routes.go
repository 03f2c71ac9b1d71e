package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"guardians/internal/controllers"
)

func RegisterMonitorRoutes(r *gin.Engine, ctl *controllers.Controller) {
	metrics := r.Group("/metrics")
	{
		metrics.GET("", ctl.GetStatus)
		metrics.GET("/cpu", ctl.GetCPU)
		metrics.GET("/memory", ctl.GetMemory)
		metrics.GET("/disk", ctl.GetDisk)
		metrics.GET("/network", ctl.GetNetwork)
	}
	r.GET("/history", ctl.GetHistory)
}

// RegisterDebugRoutes exposes the internal Prometheus registry
func RegisterDebugRoutes(r *gin.Engine, gatherer prometheus.Gatherer) {
	r.GET("/debug/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
}
