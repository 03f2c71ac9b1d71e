package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"guardians/internal/imetrics"
	"guardians/internal/logging"
	"guardians/internal/models"
	"guardians/internal/provider"
	"guardians/internal/workerpool"
)

var dispatchLog = logging.L("dispatcher")

// ErrBusy is returned by Dispatch when the action queue is full
var ErrBusy = errors.New("action queue full")

const resultBuffer = 64

// Dispatcher runs control actions on a worker pool so a hung OS call never
// stalls sampling. Outcomes are published on Results.
type Dispatcher struct {
	provider provider.ProcessProvider
	pool     *workerpool.Pool
	timeout  time.Duration
	metrics  imetrics.Reporter

	ids       atomic.Uint64
	results   chan models.ActionResult
	done      chan struct{}
	closeOnce sync.Once
}

func NewDispatcher(p provider.ProcessProvider, pool *workerpool.Pool, timeout time.Duration, metrics imetrics.Reporter) *Dispatcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if metrics == nil {
		metrics = imetrics.NoopReporter{}
	}
	return &Dispatcher{
		provider: p,
		pool:     pool,
		timeout:  timeout,
		metrics:  metrics,
		results:  make(chan models.ActionResult, resultBuffer),
		done:     make(chan struct{}),
	}
}

// Results delivers one ActionResult per accepted Dispatch
func (d *Dispatcher) Results() <-chan models.ActionResult {
	return d.results
}

// Validate normalizes req and rejects malformed requests with
// ErrInvalidArgument. An unknown priority level is never defaulted.
func (d *Dispatcher) Validate(req models.ActionRequest) (models.ActionRequest, error) {
	kind, err := models.ParseActionKind(string(req.Kind))
	if err != nil {
		return req, err
	}
	req.Kind = kind
	if req.PID <= 0 {
		return req, fmt.Errorf("%w: invalid pid %d", models.ErrInvalidArgument, req.PID)
	}
	if kind == models.ActionSetPriority {
		level, err := models.ParsePriorityLevel(string(req.Level))
		if err != nil {
			return req, err
		}
		req.Level = level
	} else {
		req.Level = ""
	}
	if req.ID == "" {
		req.ID = "act-" + strconv.FormatUint(d.ids.Add(1), 10)
	}
	return req, nil
}

// Dispatch validates req and queues it. It returns immediately with the
// request as queued (ID assigned); the outcome arrives on Results.
func (d *Dispatcher) Dispatch(req models.ActionRequest) (models.ActionRequest, error) {
	req, err := d.Validate(req)
	if err != nil {
		return req, err
	}
	ok := d.pool.Submit(func(ctx context.Context) {
		d.publish(d.execute(ctx, req))
	})
	if !ok {
		d.metrics.ActionFinished(string(req.Kind), models.ErrorKindBusy)
		return req, fmt.Errorf("%s pid %d: %w", req.Kind, req.PID, ErrBusy)
	}
	return req, nil
}

func (d *Dispatcher) execute(ctx context.Context, req models.ActionRequest) models.ActionResult {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	start := time.Now()
	errc := make(chan error, 1)
	go func() {
		errc <- d.call(ctx, req)
	}()

	var err error
	select {
	case err = <-errc:
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%s pid %d: %w", req.Kind, req.PID, provider.ErrTimeout)
		}
	case <-ctx.Done():
		// the provider call is abandoned; it holds no locks of ours
		err = fmt.Errorf("%s pid %d after %s: %w", req.Kind, req.PID, d.timeout, provider.ErrTimeout)
	}
	return d.finish(req, err, time.Since(start))
}

func (d *Dispatcher) call(ctx context.Context, req models.ActionRequest) error {
	switch req.Kind {
	case models.ActionTerminate:
		return d.provider.Terminate(ctx, req.PID)
	case models.ActionSuspend:
		return d.provider.Suspend(ctx, req.PID)
	case models.ActionResume:
		return d.provider.Resume(ctx, req.PID)
	case models.ActionSetPriority:
		native, err := d.provider.NativePriority(req.Level)
		if err != nil {
			return err
		}
		return d.provider.SetPriority(ctx, req.PID, native)
	}
	return fmt.Errorf("%w: unknown action %q", models.ErrInvalidArgument, req.Kind)
}

func (d *Dispatcher) finish(req models.ActionRequest, err error, took time.Duration) models.ActionResult {
	res := models.ActionResult{
		ActionRequest: req,
		OK:            err == nil,
		Duration:      took,
		FinishedAt:    time.Now(),
	}
	outcome := "ok"
	if err != nil {
		res.ErrorKind, res.Retryable = ErrorKindOf(err)
		res.Error = err.Error()
		outcome = res.ErrorKind
		dispatchLog.Warn("action failed",
			logging.KeyAction, req.Kind, logging.KeyPID, req.PID,
			"errorKind", res.ErrorKind, logging.KeyDurationMs, took.Milliseconds(), logging.KeyError, err)
	} else {
		dispatchLog.Info("action completed",
			logging.KeyAction, req.Kind, logging.KeyPID, req.PID, logging.KeyDurationMs, took.Milliseconds())
	}
	d.metrics.ActionFinished(string(req.Kind), outcome)
	return res
}

func (d *Dispatcher) publish(res models.ActionResult) {
	select {
	case d.results <- res:
	case <-d.done:
		dispatchLog.Debug("dropping action result after close", "id", res.ID)
	}
}

// Close drains queued actions, then stops delivering results
func (d *Dispatcher) Close(ctx context.Context) {
	d.pool.Shutdown(ctx)
	d.closeOnce.Do(func() { close(d.done) })
}

// ErrorKindOf maps an action error onto its reported kind and whether a
// retry could succeed.
func ErrorKindOf(err error) (kind string, retryable bool) {
	switch {
	case err == nil:
		return "", false
	case errors.Is(err, provider.ErrUnsupported):
		return models.ErrorKindUnsupported, false
	case errors.Is(err, models.ErrInvalidArgument):
		return models.ErrorKindInvalidArgument, false
	case errors.Is(err, provider.ErrProcessGone):
		return models.ErrorKindProcessGone, true
	case errors.Is(err, provider.ErrAccessDenied):
		return models.ErrorKindAccessDenied, true
	case errors.Is(err, provider.ErrTimeout):
		return models.ErrorKindTimeout, true
	case errors.Is(err, ErrBusy):
		return models.ErrorKindBusy, true
	}
	return models.ErrorKindFailed, true
}
