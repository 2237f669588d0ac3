package installer

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"machine-bootstrap/internal/logger"
	"machine-bootstrap/internal/runner"
)

// PanicError wraps a panic recovered from a task together with its stack.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Orchestrator runs tasks in order, one at a time.
type Orchestrator struct {
	Log *logger.Logger
	// Now is used for task durations; time.Now when nil.
	Now func() time.Time
}

// Run executes tasks sequentially and returns one result per task, in order.
// The first failing task aborts the run: its error is returned and every
// later task is reported as pending.
func (o *Orchestrator) Run(ctx context.Context, tasks []Task) ([]TaskResult, error) {
	results := make([]TaskResult, len(tasks))
	for i, t := range tasks {
		results[i] = TaskResult{Task: t.Name(), Status: StatusPending}
	}

	for i, t := range tasks {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		status, dur, err := o.runOne(ctx, t)
		results[i].Status = status
		results[i].Duration = dur
		results[i].Err = err
		if err != nil {
			return results, fmt.Errorf("%s: %w", t.Name(), err)
		}
	}
	return results, nil
}

func (o *Orchestrator) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

// runOne drives a single task through ShouldRun, Pre, Run and Post.
func (o *Orchestrator) runOne(ctx context.Context, t Task) (status Status, dur time.Duration, err error) {
	step := StepName(t.Name())
	start := o.now()
	o.Log.StepBegin(step)

	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
		dur = o.now().Sub(start)
		if err != nil {
			status = StatusFailed
			o.fail(step, err)
			return
		}
		o.Log.StepEnd(step, logger.End{OK: true})
	}()

	if c, ok := t.(Conditional); ok {
		run, err := c.ShouldRun(ctx)
		if err != nil {
			return StatusFailed, 0, fmt.Errorf("should run: %w", err)
		}
		if !run {
			o.Log.Info(step, "skipping (should run = false)")
			return StatusSkipped, 0, nil
		}
	}

	if err := t.Pre(ctx); err != nil {
		return StatusFailed, 0, fmt.Errorf("pre: %w", err)
	}
	if err := t.Run(ctx); err != nil {
		return StatusFailed, 0, fmt.Errorf("run: %w", err)
	}
	if err := t.Post(ctx); err != nil {
		return StatusFailed, 0, fmt.Errorf("post: %w", err)
	}
	return StatusSucceeded, 0, nil
}

// fail logs the error line and the failed step end.
func (o *Orchestrator) fail(step string, err error) {
	msg := err.Error()
	var p *PanicError
	if errors.As(err, &p) {
		msg = fmt.Sprintf("%s\n%s", msg, p.Stack)
	}
	o.Log.Error(step, "failed: %s", msg)

	end := logger.End{OK: false, Error: msg}
	if code, ok := runner.ExitCode(err); ok {
		end.Code = &code
	}
	o.Log.StepEnd(step, end)
}
