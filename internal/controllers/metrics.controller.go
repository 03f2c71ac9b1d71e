package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetStatus returns the combined system monitor reading
func (ctl *Controller) GetStatus(c *gin.Context) {
	status, err := ctl.metrics.Status(c.Request.Context(), ctl.monitor.Counts().Total)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (ctl *Controller) GetCPU(c *gin.Context) {
	cpuStatus, err := ctl.metrics.CPU(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cpuStatus)
}

func (ctl *Controller) GetMemory(c *gin.Context) {
	memStatus, err := ctl.metrics.Memory(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, memStatus)
}

func (ctl *Controller) GetDisk(c *gin.Context) {
	diskStatus, err := ctl.metrics.Disk(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, diskStatus)
}

func (ctl *Controller) GetNetwork(c *gin.Context) {
	netStatus, err := ctl.metrics.Network(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, netStatus)
}
