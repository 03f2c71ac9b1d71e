package provider

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"syscall"

	"github.com/shirou/gopsutil/v3/process"

	"guardians/internal/models"
)

var (
	// ErrProviderUnavailable means the OS query could not complete. Transient.
	ErrProviderUnavailable = errors.New("process provider unavailable")

	// ErrProcessGone means the target pid vanished.
	ErrProcessGone = errors.New("process no longer exists")

	// ErrUnsupported means the host lacks the capability. Retrying will not help.
	ErrUnsupported = errors.New("operation not supported on this host")

	// ErrInvalidArgument is a caller bug such as an unknown priority level.
	ErrInvalidArgument = models.ErrInvalidArgument

	// ErrAccessDenied means the OS refused the operation for this user.
	ErrAccessDenied = errors.New("access denied")

	// ErrTimeout means a host call did not finish within its deadline.
	ErrTimeout = errors.New("operation timed out")
)

// PlatformError describes a capability the current platform does not have.
type PlatformError struct {
	Operation string
	Platform  string
	Message   string
}

func (e *PlatformError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s is not supported on %s", e.Operation, e.Platform)
	}
	return fmt.Sprintf("%s is not supported on %s: %s", e.Operation, e.Platform, e.Message)
}

func (e *PlatformError) Is(target error) bool {
	return target == ErrUnsupported
}

func newPlatformError(operation, message string) error {
	return &PlatformError{Operation: operation, Platform: runtime.GOOS, Message: message}
}

// gopsutil's internal common.ErrNotImplementedError is not importable.
const notImplementedMsg = "not implemented yet"

// classify maps an OS-level failure onto the provider's taxonomy.
func classify(op string, pid int32, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, ErrProcessGone), errors.Is(err, ErrUnsupported),
		errors.Is(err, ErrAccessDenied), errors.Is(err, ErrTimeout):
		return err
	case isGone(err):
		return fmt.Errorf("%s pid %d: %w", op, pid, ErrProcessGone)
	case errors.Is(err, os.ErrPermission), errors.Is(err, process.ErrorNotPermitted):
		return fmt.Errorf("%s pid %d: %w", op, pid, ErrAccessDenied)
	case errors.Is(err, errors.ErrUnsupported), err.Error() == notImplementedMsg:
		return newPlatformError(op, err.Error())
	}
	return fmt.Errorf("%s pid %d: %w", op, pid, err)
}

func isGone(err error) bool {
	return errors.Is(err, process.ErrorProcessNotRunning) ||
		errors.Is(err, syscall.ESRCH) ||
		errors.Is(err, os.ErrProcessDone)
}
