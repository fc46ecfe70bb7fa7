package schedule

import (
	"context"
	"errors"
	"fmt"

	"chirpbot/internal/eventbus"
	logx "chirpbot/pkg/logx"
)

// PanicError is returned by Do when a run panicked.
type PanicError struct {
	Job   string
	Value any
	Stack string
}

func (e *PanicError) Error() string { return fmt.Sprintf("schedule: job %s panicked: %v", e.Job, e.Value) }

// Do runs fn as an execution of family name. If a run of that family is
// already in flight, fn is not called and ErrOverlapSkip is returned.
// Panics in fn are recovered and returned as *PanicError.
func (s *Scheduler) Do(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	f, ok := s.family(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	if !f.running.CompareAndSwap(false, true) {
		f.mu.Lock()
		f.skips++
		f.mu.Unlock()
		s.log.Info("run skipped, previous still in flight", logx.String("job", name))
		return ErrOverlapSkip
	}
	defer f.running.Store(false)

	runCtx := ctx
	if f.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	start := s.now()
	err := s.runSafe(runCtx, name, fn)
	dur := s.now().Sub(start)

	f.mu.Lock()
	f.runs++
	f.lastRun = start
	f.lastErr = ""
	if err != nil {
		f.failures++
		f.lastErr = err.Error()
	}
	f.mu.Unlock()

	if err != nil {
		s.log.Warn("job failed", logx.String("job", name), logx.Duration("dur", dur), logx.Err(err))
	} else {
		s.log.Debug("job completed", logx.String("job", name), logx.Duration("dur", dur))
	}
	return err
}

func (s *Scheduler) runSafe(ctx context.Context, name string, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			pe := &PanicError{Job: name, Value: r, Stack: logx.StackTrace(3, 32)}
			s.log.Error("job panicked", logx.String("job", name), logx.Any("panic", r), logx.Stack(pe.Stack))
			s.bus.Publish(eventbus.Event{Type: eventbus.TypeJobPanicked, Data: pe})
			err = pe
		}
	}()
	return fn(ctx)
}

// IsPanic reports whether err came from a recovered panic.
func IsPanic(err error) bool {
	var pe *PanicError
	return errors.As(err, &pe)
}

// Running reports whether a run of name is in flight.
func (s *Scheduler) Running(name string) bool {
	f, ok := s.family(name)
	return ok && f.running.Load()
}

