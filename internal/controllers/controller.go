package controllers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"guardians/internal/logging"
	"guardians/internal/middleware"
	"guardians/internal/models"
	"guardians/internal/provider"
	"guardians/internal/services"
)

var log = logging.L("http")

// Deps are the services the HTTP layer talks to. Auth is nil when
// authentication is disabled.
type Deps struct {
	Monitor        *services.Monitor
	Hub            *services.WebSocketHub
	Auth           *services.AuthService
	Metrics        *services.MetricsCache
	History        *services.HistoryCollector
	AllowedOrigins []string
}

// Controller holds the handlers for every route
type Controller struct {
	monitor   *services.Monitor
	hub       *services.WebSocketHub
	auth      *services.AuthService
	metrics   *services.MetricsCache
	history   *services.HistoryCollector
	security  *middleware.SecurityLogger
	validator *middleware.InputValidator
	upgrader  websocket.Upgrader
}

func New(deps Deps) *Controller {
	origins := deps.AllowedOrigins
	return &Controller{
		monitor:   deps.Monitor,
		hub:       deps.Hub,
		auth:      deps.Auth,
		metrics:   deps.Metrics,
		history:   deps.History,
		security:  middleware.NewSecurityLogger(),
		validator: middleware.NewInputValidator(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || middleware.OriginAllowed(origin, origins)
			},
		},
	}
}

// Security is the logger shared with the auth middleware
func (ctl *Controller) Security() *middleware.SecurityLogger {
	return ctl.security
}

// StatusFor maps a service error onto an HTTP status
func StatusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrNotSelected):
		return http.StatusConflict
	case errors.Is(err, provider.ErrProcessGone):
		return http.StatusNotFound
	case errors.Is(err, provider.ErrAccessDenied):
		return http.StatusForbidden
	case errors.Is(err, provider.ErrUnsupported):
		return http.StatusNotImplemented
	case errors.Is(err, services.ErrBusy), errors.Is(err, provider.ErrProviderUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, provider.ErrTimeout):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func respondError(c *gin.Context, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		log.Warn("request failed", "path", c.FullPath(), logging.KeyError, err)
	}
	kind, retryable := services.ErrorKindOf(err)
	if errors.Is(err, services.ErrNotSelected) {
		kind, retryable = "not_selected", false
	}
	c.JSON(status, gin.H{"error": err.Error(), "error_kind": kind, "retryable": retryable})
}

func errUnknownIntent(typ string) error {
	return fmt.Errorf("%w: unknown message type %q", models.ErrInvalidArgument, typ)
}
