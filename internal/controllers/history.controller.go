package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// GetHistory returns the chart series for the real-time view
// Query params: duration=30s|5m|10m (default: 10m, 0 for everything kept)
func (ctl *Controller) GetHistory(c *gin.Context) {
	durationStr := c.DefaultQuery("duration", "10m")

	duration, err := time.ParseDuration(durationStr)
	if err != nil || duration < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid duration format"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"duration": durationStr,
		"data":     ctl.history.Window(duration),
	})
}
