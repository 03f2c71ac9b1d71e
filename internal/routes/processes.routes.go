package routes

import (
	"github.com/gin-gonic/gin"

	"guardians/internal/controllers"
)

// RegisterProcessRoutes registers the process table, view and action routes.
// guard protects the mutating routes; actions also pass through actionLimit.
func RegisterProcessRoutes(r *gin.Engine, ctl *controllers.Controller, guard, actionLimit gin.HandlerFunc) {
	processes := r.Group("/processes")
	{
		processes.GET("", ctl.GetProjection)
		processes.GET("/status", ctl.GetProcessStatus)
		processes.GET("/:pid", ctl.GetProcess)
		processes.POST("/refresh", guard, ctl.Refresh)
		processes.POST("/:pid/actions/:kind", guard, actionLimit, ctl.InvokeAction)
	}

	view := r.Group("/view")
	{
		view.GET("", ctl.GetView)
		view.PUT("/search", guard, ctl.SetSearch)
		view.PUT("/class", guard, ctl.SetClass)
		view.PUT("/sort", guard, ctl.SetSort)
		view.DELETE("/sort", guard, ctl.ClearSort)
		view.PUT("/selection", guard, ctl.Select)
		view.DELETE("/selection", guard, ctl.ClearSelection)
	}
}
