//go:build windows

package provider

import (
	"errors"
	"fmt"

	"golang.org/x/sys/windows"

	"guardians/internal/models"
)

// priorityClasses maps levels onto Win32 priority-class codes
var priorityClasses = map[models.PriorityLevel]int{
	models.PriorityLow:         0x0040, // IDLE_PRIORITY_CLASS
	models.PriorityBelowNormal: 0x4000, // BELOW_NORMAL_PRIORITY_CLASS
	models.PriorityNormal:      0x0020, // NORMAL_PRIORITY_CLASS
	models.PriorityAboveNormal: 0x8000, // ABOVE_NORMAL_PRIORITY_CLASS
	models.PriorityHigh:        0x0080, // HIGH_PRIORITY_CLASS
	models.PriorityRealtime:    0x0100, // REALTIME_PRIORITY_CLASS
}

func nativePriority(level models.PriorityLevel) (int, error) {
	class, ok := priorityClasses[level]
	if !ok {
		return 0, fmt.Errorf("%w: unknown priority level %q", ErrInvalidArgument, level)
	}
	return class, nil
}

func setNativePriority(pid int32, native int) error {
	known := false
	for _, class := range priorityClasses {
		if class == native {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("%w: priority class %d", ErrInvalidArgument, native)
	}

	handle, err := windows.OpenProcess(windows.PROCESS_SET_INFORMATION, false, uint32(pid))
	if err != nil {
		if errors.Is(err, windows.ERROR_INVALID_PARAMETER) {
			return ErrProcessGone
		}
		if errors.Is(err, windows.ERROR_ACCESS_DENIED) {
			return ErrAccessDenied
		}
		return err
	}
	defer windows.CloseHandle(handle)

	return windows.SetPriorityClass(handle, uint32(native))
}
