//go:build !unix && !windows

package provider

import "guardians/internal/models"

func nativePriority(level models.PriorityLevel) (int, error) {
	return 0, newPlatformError("set priority", "no priority interface")
}

func setNativePriority(pid int32, native int) error {
	return newPlatformError("set priority", "no priority interface")
}
