package models

import (
	"fmt"
	"strings"
	"time"
)

// ActionKind is a user action against the selected process
type ActionKind string

const (
	ActionTerminate   ActionKind = "terminate"
	ActionSuspend     ActionKind = "suspend"
	ActionResume      ActionKind = "resume"
	ActionSetPriority ActionKind = "priority"
)

func ParseActionKind(s string) (ActionKind, error) {
	switch ActionKind(strings.ToLower(strings.TrimSpace(s))) {
	case ActionTerminate, "kill":
		return ActionTerminate, nil
	case ActionSuspend:
		return ActionSuspend, nil
	case ActionResume:
		return ActionResume, nil
	case ActionSetPriority, "set_priority":
		return ActionSetPriority, nil
	}
	return "", fmt.Errorf("%w: unknown action %q", ErrInvalidArgument, s)
}

// PriorityLevel is the host-independent scheduling priority
type PriorityLevel string

const (
	PriorityLow         PriorityLevel = "LOW"
	PriorityBelowNormal PriorityLevel = "BELOW_NORMAL"
	PriorityNormal      PriorityLevel = "NORMAL"
	PriorityAboveNormal PriorityLevel = "ABOVE_NORMAL"
	PriorityHigh        PriorityLevel = "HIGH"
	PriorityRealtime    PriorityLevel = "REALTIME"
)

// PriorityLevels lists every level from lowest to highest
var PriorityLevels = []PriorityLevel{
	PriorityLow, PriorityBelowNormal, PriorityNormal, PriorityAboveNormal, PriorityHigh, PriorityRealtime,
}

// ParsePriorityLevel accepts "below_normal", "Below-Normal", "BELOW NORMAL" etc.
// Unknown input is an error; there is no fallback level.
func ParsePriorityLevel(s string) (PriorityLevel, error) {
	norm := strings.ToUpper(strings.TrimSpace(s))
	norm = strings.NewReplacer("-", "_", " ", "_").Replace(norm)
	for _, l := range PriorityLevels {
		if string(l) == norm {
			return l, nil
		}
	}
	return "", fmt.Errorf("%w: unknown priority level %q", ErrInvalidArgument, s)
}

// ActionRequest asks the dispatcher to act on one pid
type ActionRequest struct {
	ID    string        `json:"id"`
	Kind  ActionKind    `json:"kind"`
	PID   int32         `json:"pid"`
	Level PriorityLevel `json:"level,omitempty"`
}

// Error kinds reported in ActionResult.ErrorKind
const (
	ErrorKindProcessGone     = "process_gone"
	ErrorKindUnsupported     = "unsupported"
	ErrorKindInvalidArgument = "invalid_argument"
	ErrorKindAccessDenied    = "access_denied"
	ErrorKindTimeout         = "timeout"
	ErrorKindBusy            = "busy"
	ErrorKindFailed          = "failed"
)

// ActionResult is the one-shot outcome notification for an ActionRequest
type ActionResult struct {
	ActionRequest
	OK         bool          `json:"ok"`
	ErrorKind  string        `json:"error_kind,omitempty"`
	Error      string        `json:"error,omitempty"`
	Retryable  bool          `json:"retryable"`
	Duration   time.Duration `json:"duration_ns"`
	FinishedAt time.Time     `json:"finished_at"`
}

// Event types delivered to Presentation subscribers
const (
	EventProjection   = "projection"
	EventActionResult = "action_result"
)

// Event carries either a fresh projection or an action outcome
type Event struct {
	Type       string        `json:"type"`
	Projection *Projection   `json:"projection,omitempty"`
	Action     *ActionResult `json:"action,omitempty"`
}
