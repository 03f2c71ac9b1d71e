package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"guardians/internal/controllers"
	"guardians/internal/middleware"
	"guardians/internal/services"
)

// RouterOptions configures NewRouter. A nil Auth disables authentication;
// a nil Gatherer omits /debug/metrics.
type RouterOptions struct {
	Controller     *controllers.Controller
	Auth           *services.AuthService
	Gatherer       prometheus.Gatherer
	AllowedOrigins []string
	IPWhitelist    []string
}

// NewRouter builds the engine with middleware and every route registered
func NewRouter(opts RouterOptions) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.SecurityHeadersMiddleware())
	r.Use(middleware.CORSMiddleware(opts.AllowedOrigins))
	r.Use(middleware.IPWhitelistMiddleware(middleware.NewIPWhitelist(opts.IPWhitelist)))
	r.Use(middleware.RateLimitMiddleware(middleware.NewGeneralRateLimiter(), "request"))

	guard := middleware.AuthMiddleware(opts.Auth, opts.Controller.Security())
	actionLimit := middleware.RateLimitMiddleware(middleware.NewActionRateLimiter(), "action")

	RegisterAuthRoutes(r, opts.Controller)
	RegisterProcessRoutes(r, opts.Controller, guard, actionLimit)
	RegisterMonitorRoutes(r, opts.Controller)
	if opts.Gatherer != nil {
		RegisterDebugRoutes(r, opts.Gatherer)
	}
	return r
}
