//go:build !linux

package provider

import "time"

// Procfs is only available on Linux
type Procfs struct{ Host }

func NewProcfs(root string, killGrace time.Duration) (*Procfs, error) {
	return nil, newPlatformError("procfs backend", "requires /proc")
}
