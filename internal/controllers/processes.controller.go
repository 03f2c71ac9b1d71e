package controllers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"guardians/internal/models"
)

func parsePID(c *gin.Context) (int32, error) {
	pid, err := strconv.ParseInt(c.Param("pid"), 10, 32)
	if err != nil || pid < 0 {
		return 0, fmt.Errorf("%w: invalid pid %q", models.ErrInvalidArgument, c.Param("pid"))
	}
	return int32(pid), nil
}

// GetProjection returns the latest filtered and sorted process table
func (ctl *Controller) GetProjection(c *gin.Context) {
	c.JSON(http.StatusOK, ctl.monitor.Latest())
}

// GetProcessStatus returns process counts by classification
func (ctl *Controller) GetProcessStatus(c *gin.Context) {
	c.JSON(http.StatusOK, ctl.monitor.Counts())
}

// GetProcess reads the current details of one process from the provider
func (ctl *Controller) GetProcess(c *gin.Context) {
	pid, err := parsePID(c)
	if err != nil {
		respondError(c, err)
		return
	}
	details, err := ctl.monitor.Inspect(c.Request.Context(), pid)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, details)
}

// Refresh requests an immediate sample
func (ctl *Controller) Refresh(c *gin.Context) {
	ctl.monitor.Refresh()
	c.Status(http.StatusAccepted)
}

type actionBody struct {
	Level string `json:"level"`
}

// InvokeAction queues an action against the selected process. The outcome
// is pushed to websocket clients as an action_result message.
func (ctl *Controller) InvokeAction(c *gin.Context) {
	pid, err := parsePID(c)
	if err != nil {
		respondError(c, err)
		return
	}
	var body actionBody
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			respondError(c, fmt.Errorf("%w: %v", models.ErrInvalidArgument, err))
			return
		}
	}

	ctl.security.LogActionRequested(c.ClientIP(), c.Param("kind"), pid)
	req, err := ctl.monitor.InvokeAction(models.ActionRequest{
		Kind:  models.ActionKind(c.Param("kind")),
		PID:   pid,
		Level: models.PriorityLevel(body.Level),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"action": req})
}
