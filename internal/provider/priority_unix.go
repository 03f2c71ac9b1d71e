//go:build unix

package provider

import (
	"fmt"

	"golang.org/x/sys/unix"

	"guardians/internal/models"
)

// niceValues maps levels onto setpriority(2) nice values
var niceValues = map[models.PriorityLevel]int{
	models.PriorityLow:         19,
	models.PriorityBelowNormal: 10,
	models.PriorityNormal:      0,
	models.PriorityAboveNormal: -5,
	models.PriorityHigh:        -10,
	models.PriorityRealtime:    -20,
}

func nativePriority(level models.PriorityLevel) (int, error) {
	nice, ok := niceValues[level]
	if !ok {
		return 0, fmt.Errorf("%w: unknown priority level %q", ErrInvalidArgument, level)
	}
	return nice, nil
}

func setNativePriority(pid int32, native int) error {
	if native < -20 || native > 19 {
		return fmt.Errorf("%w: nice value %d out of range", ErrInvalidArgument, native)
	}
	return unix.Setpriority(unix.PRIO_PROCESS, int(pid), native)
}
