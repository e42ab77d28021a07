// Package saga provides a synchronous orchestrator for multi-step operations
// spanning otherwise-independent subsystems. Each step pairs a forward action
// with a compensating action; when a forward action fails, the compensations
// for every completed step run in strict reverse order.
//
// Failure is an explicit branch on the error value returned by each step, not
// a panic or an exception-style control flow, so the compensation trigger is
// a first-class, testable path.
package saga

import (
	"context"
	"log/slog"
)

// Step is one unit of a saga. Forward performs the step; Compensate undoes it.
// Compensations must be idempotent and tolerant of partial prior completion,
// because a forward action may have taken effect even when its status update
// failed.
type Step struct {
	Name string
	// Forward performs the step's action. A nil return marks the step
	// completed; an error triggers compensation of completed steps.
	Forward func(ctx context.Context) error
	// Compensate undoes the step. May be nil for steps with no undo (e.g., a
	// provider refund that is reconciled manually rather than auto-reversed).
	Compensate func(ctx context.Context) error
}

// Result reports a saga execution. When Success is false, callers must assume
// no durable side effect is committed and must not publish further events.
type Result struct {
	// Success is true only when every forward action completed.
	Success bool
	// FailedStep names the step whose forward action failed.
	FailedStep string
	// Err is the forward action error.
	Err error
	// Compensated lists the steps whose compensation ran, in compensation
	// order (the reverse of execution order).
	Compensated []string
	// CompensationErrs holds errors from compensations that themselves failed.
	// They never block other compensations and never flip Success back.
	CompensationErrs []error
}

// Orchestrator executes sagas.
type Orchestrator struct {
	logger *slog.Logger
}

// NewOrchestrator creates a new Orchestrator.
func NewOrchestrator(logger *slog.Logger) *Orchestrator {
	return &Orchestrator{logger: logger}
}

// Execute runs the forward actions strictly in order. On the first failure it
// compensates every already-completed step in strict reverse order, logging
// but swallowing compensation failures so one bad compensation does not
// prevent the others from running.
func (o *Orchestrator) Execute(ctx context.Context, name string, steps []Step) Result {
	completed := make([]Step, 0, len(steps))

	for _, step := range steps {
		if err := step.Forward(ctx); err != nil {
			if o.logger != nil {
				o.logger.Error("saga step failed, compensating",
					slog.String("saga", name),
					slog.String("step", step.Name),
					slog.Int("completed_steps", len(completed)),
					slog.Any("error", err),
				)
			}
			result := Result{
				Success:    false,
				FailedStep: step.Name,
				Err:        err,
			}
			o.compensate(ctx, name, completed, &result)
			return result
		}
		completed = append(completed, step)
	}

	return Result{Success: true}
}

// compensate undoes completed steps in reverse order.
func (o *Orchestrator) compensate(ctx context.Context, name string, completed []Step, result *Result) {
	for i := len(completed) - 1; i >= 0; i-- {
		step := completed[i]
		if step.Compensate == nil {
			continue
		}
		if err := step.Compensate(ctx); err != nil {
			result.CompensationErrs = append(result.CompensationErrs, err)
			if o.logger != nil {
				o.logger.Error("saga compensation failed",
					slog.String("saga", name),
					slog.String("step", step.Name),
					slog.Any("error", err),
				)
			}
			continue
		}
		result.Compensated = append(result.Compensated, step.Name)
	}
}
