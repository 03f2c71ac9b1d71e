package middleware

import (
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"guardians/internal/logging"
)

var log = logging.L("security")

// RateLimiter is a token bucket per client IP
type RateLimiter struct {
	limit    rate.Limit
	burst    int
	limiters map[string]*rate.Limiter
	mu       sync.Mutex
}

func NewRateLimiter(limit rate.Limit, burst int) *RateLimiter {
	return &RateLimiter{limit: limit, burst: burst, limiters: make(map[string]*rate.Limiter)}
}

// NewGeneralRateLimiter allows 100 requests per second per IP, burst of 200
func NewGeneralRateLimiter() *RateLimiter {
	return NewRateLimiter(rate.Limit(100), 200)
}

// NewActionRateLimiter allows one control action every 500ms per IP, burst of 5
func NewActionRateLimiter() *RateLimiter {
	return NewRateLimiter(rate.Every(500*time.Millisecond), 5)
}

// GetLimiter gets or creates a limiter for an IP address
func (rl *RateLimiter) GetLimiter(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if limiter, exists := rl.limiters[ip]; exists {
		return limiter
	}
	limiter := rate.NewLimiter(rl.limit, rl.burst)
	rl.limiters[ip] = limiter
	return limiter
}

// RateLimitMiddleware enforces limiter; scope names it in logs and errors
func RateLimitMiddleware(limiter *RateLimiter, scope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if !limiter.GetLimiter(ip).Allow() {
			log.Warn("rate limit exceeded", "ip", ip, "scope", scope)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       scope + " rate limit exceeded",
				"retry_after": 1,
			})
			return
		}
		c.Next()
	}
}

// SecurityHeadersMiddleware adds security headers to all responses
func SecurityHeadersMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Content-Security-Policy", "default-src 'self'")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Header("Permissions-Policy", "geolocation=(), microphone=(), camera=()")
		c.Header("Cache-Control", "no-store")
		c.Next()
	}
}

// OriginAllowed matches an Origin header against the configured list.
// Entries may be "*", full origins, or bare hosts.
func OriginAllowed(origin string, allowedOrigins []string) bool {
	normalized := strings.TrimRight(origin, "/")
	if normalized == "" {
		return false
	}
	for _, o := range allowedOrigins {
		trimmed := strings.TrimRight(strings.TrimSpace(o), "/")
		switch {
		case trimmed == "":
			continue
		case trimmed == "*", trimmed == normalized:
			return true
		case !strings.Contains(trimmed, "://"):
			if parsed, err := url.Parse(normalized); err == nil && parsed.Hostname() == trimmed {
				return true
			}
		}
	}
	return false
}

// CORSMiddleware answers preflights and tags allowed origins
func CORSMiddleware(allowedOrigins []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if OriginAllowed(origin, allowedOrigins) {
			c.Header("Vary", "Origin")
			c.Header("Access-Control-Allow-Origin", strings.TrimRight(origin, "/"))
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
			c.Header("Access-Control-Max-Age", "86400")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// IPWhitelist admits loopback plus the configured addresses and networks.
// An empty list admits everyone.
type IPWhitelist struct {
	ips  map[string]bool
	nets []*net.IPNet
}

func NewIPWhitelist(entries []string) *IPWhitelist {
	wl := &IPWhitelist{ips: make(map[string]bool)}
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if _, network, err := net.ParseCIDR(entry); err == nil {
			wl.nets = append(wl.nets, network)
			continue
		}
		if ip := net.ParseIP(entry); ip != nil {
			wl.ips[ip.String()] = true
		}
	}
	return wl
}

// IsAllowed checks if an IP is whitelisted
func (wl *IPWhitelist) IsAllowed(addr string) bool {
	if len(wl.ips) == 0 && len(wl.nets) == 0 {
		return true
	}

	host := addr
	if h, _, err := net.SplitHostPort(addr); err == nil {
		host = h
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return host == "localhost"
	}
	if ip.IsLoopback() || wl.ips[ip.String()] {
		return true
	}
	for _, network := range wl.nets {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// IPWhitelistMiddleware enforces IP whitelisting
func IPWhitelistMiddleware(whitelist *IPWhitelist) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if !whitelist.IsAllowed(ip) {
			log.Warn("access denied for non-whitelisted IP", "ip", ip)
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "access denied"})
			return
		}
		c.Next()
	}
}

// SecurityLogger records authentication and connection events
type SecurityLogger struct{}

func NewSecurityLogger() *SecurityLogger {
	return &SecurityLogger{}
}

func (sl *SecurityLogger) LogFailedAuth(ip, reason string) {
	log.Warn("failed authentication", "ip", ip, "reason", reason)
}

func (sl *SecurityLogger) LogWebSocketConnected(ip, serverName string) {
	log.Info("websocket connected", "ip", ip, "server", serverName)
}

func (sl *SecurityLogger) LogWebSocketDisconnected(ip, clientID string) {
	log.Info("websocket disconnected", "ip", ip, "client", clientID)
}

func (sl *SecurityLogger) LogActionRequested(ip, kind string, pid int32) {
	log.Info("process action requested", "ip", ip, logging.KeyAction, kind, logging.KeyPID, pid)
}

// MaxSearchTextLen bounds the search filter
const MaxSearchTextLen = 256

// InputValidator validates user input
type InputValidator struct{}

func NewInputValidator() *InputValidator {
	return &InputValidator{}
}

// ValidateToken checks the header.payload.signature shape of a JWT
func (iv *InputValidator) ValidateToken(token string) bool {
	if len(token) < 20 || len(token) > 4096 {
		return false
	}
	return strings.Count(token, ".") == 2
}

// ValidateServerName allows alphanumerics, hyphens, underscores and dots
func (iv *InputValidator) ValidateServerName(name string) bool {
	if len(name) < 1 || len(name) > 255 {
		return false
	}
	for _, c := range name {
		if !((c >= 'a' && c <= 'z') ||
			(c >= 'A' && c <= 'Z') ||
			(c >= '0' && c <= '9') ||
			c == '-' || c == '_' || c == '.') {
			return false
		}
	}
	return true
}

// ValidateSearchText rejects overlong queries and control characters
func (iv *InputValidator) ValidateSearchText(text string) bool {
	if len(text) > MaxSearchTextLen {
		return false
	}
	for _, r := range text {
		if unicode.IsControl(r) {
			return false
		}
	}
	return true
}
