package controllers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"guardians/internal/middleware"
	"guardians/internal/models"
)

type searchBody struct {
	Text string `json:"text"`
}

type classBody struct {
	Filter string `json:"filter" binding:"required"`
}

type sortBody struct {
	Column    string `json:"column" binding:"required"`
	Direction string `json:"direction"`
}

type selectionBody struct {
	PID *int32 `json:"pid" binding:"required"`
}

func bind(c *gin.Context, body any) bool {
	if err := c.ShouldBindJSON(body); err != nil {
		respondError(c, fmt.Errorf("%w: %v", models.ErrInvalidArgument, err))
		return false
	}
	return true
}

// GetView returns the current view state
func (ctl *Controller) GetView(c *gin.Context) {
	c.JSON(http.StatusOK, ctl.monitor.View().Snapshot())
}

func (ctl *Controller) SetSearch(c *gin.Context) {
	var body searchBody
	if !bind(c, &body) {
		return
	}
	if err := ctl.applySearch(body.Text); err != nil {
		respondError(c, err)
		return
	}
	ctl.GetView(c)
}

func (ctl *Controller) SetClass(c *gin.Context) {
	var body classBody
	if !bind(c, &body) {
		return
	}
	if err := ctl.applyClass(body.Filter); err != nil {
		respondError(c, err)
		return
	}
	ctl.GetView(c)
}

// SetSort accepts {column, direction}; column "none" clears the sort
func (ctl *Controller) SetSort(c *gin.Context) {
	var body sortBody
	if !bind(c, &body) {
		return
	}
	if err := ctl.applySort(body.Column, body.Direction); err != nil {
		respondError(c, err)
		return
	}
	ctl.GetView(c)
}

func (ctl *Controller) ClearSort(c *gin.Context) {
	ctl.monitor.View().ClearSort()
	ctl.GetView(c)
}

func (ctl *Controller) Select(c *gin.Context) {
	var body selectionBody
	if !bind(c, &body) {
		return
	}
	if err := ctl.applySelect(*body.PID); err != nil {
		respondError(c, err)
		return
	}
	ctl.GetView(c)
}

func (ctl *Controller) ClearSelection(c *gin.Context) {
	ctl.monitor.View().ClearSelection()
	ctl.GetView(c)
}

// The apply helpers are shared by the REST and websocket intent paths.

func (ctl *Controller) applySearch(text string) error {
	if !ctl.validator.ValidateSearchText(text) {
		return fmt.Errorf("%w: search text must be at most %d printable characters", models.ErrInvalidArgument, middleware.MaxSearchTextLen)
	}
	ctl.monitor.View().SetSearchText(text)
	return nil
}

func (ctl *Controller) applyClass(filter string) error {
	f, err := models.ParseClassFilter(filter)
	if err != nil {
		return err
	}
	ctl.monitor.View().SetClassFilter(f)
	return nil
}

func (ctl *Controller) applySort(column, direction string) error {
	if column == "none" {
		ctl.monitor.View().ClearSort()
		return nil
	}
	col, err := models.ParseSortColumn(column)
	if err != nil {
		return err
	}
	dir := models.Ascending
	if direction != "" {
		if dir, err = models.ParseSortDirection(direction); err != nil {
			return err
		}
	}
	ctl.monitor.View().SetSort(col, dir)
	return nil
}

// applySelect accepts pid 0 so the idle process can be inspected; actions on
// it are refused by the dispatcher
func (ctl *Controller) applySelect(pid int32) error {
	if pid < 0 {
		return fmt.Errorf("%w: invalid pid %d", models.ErrInvalidArgument, pid)
	}
	ctl.monitor.View().Select(pid)
	return nil
}
