// Package saga drives an ordered sequence of forward steps, each paired with
// an inverse compensation. The only durable atomic unit is a single step: on
// failure, completed steps are undone in reverse order, best-effort.
//
// The coordinator snapshots its state through a persist callback after every
// transition, so a crashed saga can be diagnosed (and recovered) from the
// transaction row alone.
package saga

import (
	"context"
	"log/slog"
	"time"

	"github.com/Haleralex/fundflow/internal/domain/entities"
	domainErrors "github.com/Haleralex/fundflow/internal/domain/errors"
)

// Step is one forward action with its inverse.
type Step struct {
	// Name identifies the step in state snapshots and logs.
	Name string

	// Execute performs the forward action.
	Execute func(ctx context.Context) error

	// Compensate undoes a completed Execute. Nil when there is nothing to undo.
	Compensate func(ctx context.Context) error

	// Retryable marks the step as safe to re-execute after a transient error.
	Retryable bool

	// MaxRetries caps re-executions (not counting the first attempt).
	MaxRetries int
}

// CompensationFailure records a compensation step that could not run.
type CompensationFailure struct {
	Step string
	Err  error
}

// Outcome is the result of a saga run.
type Outcome struct {
	State entities.SagaState

	// Err is the terminal step error, nil on success.
	Err error

	// Compensated is true when at least one compensation ran.
	Compensated bool

	// CompensationFailures collects compensations that failed. These are
	// surfaced as operational alerts; they never mask Err.
	CompensationFailures []CompensationFailure
}

// PersistFunc stores a state snapshot. Called after every transition.
type PersistFunc func(ctx context.Context, state entities.SagaState) error

// Coordinator executes steps in order with per-step retry and reverse-order
// compensation.
type Coordinator struct {
	steps   []Step
	persist PersistFunc
	logger  *slog.Logger
}

// NewCoordinator creates a coordinator. persist may be nil for tests.
func NewCoordinator(steps []Step, persist PersistFunc, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		steps:   steps,
		persist: persist,
		logger:  logger,
	}
}

// Run executes the saga.
//
// Control policy: on step failure, if the step is retryable, the error is
// transient and the retry budget is not exhausted, the step re-executes.
// Otherwise completed steps compensate in reverse order, continuing through
// individual compensation failures.
func (c *Coordinator) Run(ctx context.Context) Outcome {
	state := entities.SagaState{
		CompletedSteps:   []string{},
		CompensatedSteps: []string{},
	}

	for i, step := range c.steps {
		state.CurrentStep = i
		c.snapshot(ctx, state)

		err := c.runStep(ctx, step, &state)
		if err == nil {
			state.CompletedSteps = append(state.CompletedSteps, step.Name)
			c.snapshot(ctx, state)
			continue
		}

		// Terminal failure of this step: unwind everything completed so far.
		state.LastError = &entities.SagaError{
			Message:   err.Error(),
			Step:      step.Name,
			Timestamp: time.Now(),
		}
		c.snapshot(ctx, state)

		failures := c.compensate(ctx, &state)
		return Outcome{
			State:                state,
			Err:                  err,
			Compensated:          len(state.CompensatedSteps) > 0,
			CompensationFailures: failures,
		}
	}

	state.CurrentStep = len(c.steps)
	c.snapshot(ctx, state)
	return Outcome{State: state}
}

// runStep executes one step with its retry budget.
func (c *Coordinator) runStep(ctx context.Context, step Step, state *entities.SagaState) error {
	var err error
	for attempt := 0; ; attempt++ {
		err = step.Execute(ctx)
		if err == nil {
			return nil
		}

		if !step.Retryable || attempt >= step.MaxRetries || !domainErrors.IsRetryable(err) {
			c.logger.ErrorContext(ctx, "saga step failed",
				slog.String("step", step.Name),
				slog.Int("attempt", attempt),
				slog.String("error", err.Error()),
			)
			return err
		}

		state.RetryCount++
		c.logger.WarnContext(ctx, "saga step retrying",
			slog.String("step", step.Name),
			slog.Int("attempt", attempt+1),
			slog.String("error", err.Error()),
		)
		c.snapshot(ctx, *state)
	}
}

// compensate undoes completed steps in reverse order, best-effort.
func (c *Coordinator) compensate(ctx context.Context, state *entities.SagaState) []CompensationFailure {
	var failures []CompensationFailure

	for i := len(state.CompletedSteps) - 1; i >= 0; i-- {
		name := state.CompletedSteps[i]
		step, ok := c.findStep(name)
		if !ok || step.Compensate == nil {
			continue
		}

		if err := step.Compensate(ctx); err != nil {
			// Keep unwinding: a stuck compensation must not block the rest.
			failures = append(failures, CompensationFailure{
				Step: name,
				Err:  domainErrors.NewCompensationFailure(name, err),
			})
			c.logger.ErrorContext(ctx, "saga compensation failed",
				slog.String("step", name),
				slog.String("error", err.Error()),
			)
			continue
		}

		state.CompensatedSteps = append(state.CompensatedSteps, name)
		c.logger.InfoContext(ctx, "saga step compensated", slog.String("step", name))
		c.snapshot(ctx, *state)
	}

	return failures
}

func (c *Coordinator) findStep(name string) (Step, bool) {
	for _, s := range c.steps {
		if s.Name == name {
			return s, true
		}
	}
	return Step{}, false
}

// snapshot persists the state, logging (not failing) on error. The durable
// terminal write still happens in the owning use case.
func (c *Coordinator) snapshot(ctx context.Context, state entities.SagaState) {
	if c.persist == nil {
		return
	}
	if err := c.persist(ctx, state); err != nil {
		c.logger.WarnContext(ctx, "saga state snapshot failed", slog.String("error", err.Error()))
	}
}
