package config

import (
	"fmt"
	"net"
	"strings"

	"guardians/internal/logging"
)

var log = logging.L("config")

var validLogLevels = map[string]bool{
	"debug":   true,
	"info":    true,
	"warn":    true,
	"warning": true,
	"error":   true,
}

var validBackends = map[string]bool{
	"gopsutil": true,
	"procfs":   true,
}

// clampInt pulls *v into [lo, hi] and reports what it did
func clampInt(errs []error, name string, v *int, lo, hi int) []error {
	if *v < lo {
		errs = append(errs, fmt.Errorf("%s %d is below minimum %d, clamping", name, *v, lo))
		*v = lo
	} else if *v > hi {
		errs = append(errs, fmt.Errorf("%s %d exceeds maximum %d, clamping", name, *v, hi))
		*v = hi
	}
	return errs
}

// Validate checks the config and returns every problem found. Values that
// would break the scheduler or the worker pool are clamped to a safe range;
// the rest are reported and left for the caller to decide on.
func (c *Config) Validate() []error {
	var errs []error

	if _, _, err := net.SplitHostPort(c.ListenAddr); err != nil {
		errs = append(errs, fmt.Errorf("listen_addr %q is not host:port: %w", c.ListenAddr, err))
	}

	errs = clampInt(errs, "sample_interval_ms", &c.SampleIntervalMs, 100, 60000)
	errs = clampInt(errs, "actions.timeout_seconds", &c.Actions.TimeoutSeconds, 1, 300)
	errs = clampInt(errs, "actions.workers", &c.Actions.Workers, 1, 32)
	errs = clampInt(errs, "actions.queue_size", &c.Actions.QueueSize, 1, 1024)
	errs = clampInt(errs, "history.points", &c.History.Points, 1, 3600)
	errs = clampInt(errs, "auth.token_expiry_hours", &c.Auth.TokenExpiryHours, 1, 365*24)
	if c.Provider.ExeCacheSize < 0 {
		errs = append(errs, fmt.Errorf("provider.exe_cache_size %d is negative, using default", c.Provider.ExeCacheSize))
		c.Provider.ExeCacheSize = 0
	}

	if !validBackends[strings.ToLower(c.Provider.Backend)] {
		errs = append(errs, fmt.Errorf("provider.backend %q is not valid (use gopsutil or procfs)", c.Provider.Backend))
	}

	if c.Log.Level != "" && !validLogLevels[strings.ToLower(c.Log.Level)] {
		errs = append(errs, fmt.Errorf("log.level %q is not valid (use debug, info, warn, error)", c.Log.Level))
	}
	if c.Log.Format != "" && c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("log.format %q is not valid (use text or json)", c.Log.Format))
	}

	for _, entry := range c.Security.IPWhitelist {
		if net.ParseIP(entry) == nil {
			if _, _, err := net.ParseCIDR(entry); err != nil {
				errs = append(errs, fmt.Errorf("security.ip_whitelist entry %q is neither an IP nor a CIDR", entry))
			}
		}
	}

	for _, err := range errs {
		log.Warn("config validation", logging.KeyError, err)
	}
	return errs
}
