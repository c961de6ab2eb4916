package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jsamuelsen/quote-sync/internal/platform/logging"
)

// Quote mutations run as Validate → Perform → Verify → Archive → Respond.
// Nothing is persisted until the performed result has been verified.

// ExecutionStep represents a step in the transactional pattern.
type ExecutionStep string

const (
	StepValidate ExecutionStep = "validate"
	StepPerform  ExecutionStep = "perform"
	StepVerify   ExecutionStep = "verify"
	StepArchive  ExecutionStep = "archive"
	StepRespond  ExecutionStep = "respond"
)

// ExecutionError wraps errors with the step where they occurred.
// Domain errors stay reachable through errors.Is and errors.As.
type ExecutionError struct {
	Operation string
	Step      ExecutionStep
	Cause     error
}

// Error implements the error interface.
func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Operation, e.Step, e.Cause)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *ExecutionError) Unwrap() error {
	return e.Cause
}

// Executor runs operations using the transactional pattern.
type Executor struct {
	logger *slog.Logger
}

// NewExecutor creates a new executor with the given logger.
func NewExecutor(logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}

	return &Executor{logger: logger}
}

// Operation defines the functions for each step. Nil steps are skipped and
// pass the zero value on.
type Operation[I, P, V, O any] struct {
	// Name identifies this operation in logs and errors.
	Name string

	// Validate checks inputs before any state changes.
	Validate func(ctx context.Context, input I) error

	// Perform does the work, such as fetching the remote batch.
	Perform func(ctx context.Context, input I) (P, error)

	// Verify checks the performed result before it is persisted.
	Verify func(ctx context.Context, input I, performed P) (V, error)

	// Archive persists the verified result.
	Archive func(ctx context.Context, input I, verified V) error

	// Respond shapes the result for the caller.
	Respond func(ctx context.Context, input I, verified V) (O, error)
}

// Execute runs an operation through the full transactional pattern.
// The logger is taken from ctx when one was attached by the HTTP middleware.
func Execute[I, P, V, O any](ctx context.Context, exec *Executor, op Operation[I, P, V, O], input I) (O, error) {
	var zero O

	logger := logging.FromContextOr(ctx, exec.logger).With(slog.String("operation", op.Name))
	start := time.Now()

	_, err := runStep(ctx, logger, op.Name, StepValidate, func() (struct{}, error) {
		if op.Validate == nil {
			return struct{}{}, nil
		}

		return struct{}{}, op.Validate(ctx, input)
	})
	if err != nil {
		return zero, err
	}

	performed, err := runStep(ctx, logger, op.Name, StepPerform, func() (P, error) {
		var p P
		if op.Perform == nil {
			return p, nil
		}

		return op.Perform(ctx, input)
	})
	if err != nil {
		return zero, err
	}

	verified, err := runStep(ctx, logger, op.Name, StepVerify, func() (V, error) {
		var v V
		if op.Verify == nil {
			return v, nil
		}

		return op.Verify(ctx, input, performed)
	})
	if err != nil {
		return zero, err
	}

	_, err = runStep(ctx, logger, op.Name, StepArchive, func() (struct{}, error) {
		if op.Archive == nil {
			return struct{}{}, nil
		}

		return struct{}{}, op.Archive(ctx, input, verified)
	})
	if err != nil {
		return zero, err
	}

	result, err := runStep(ctx, logger, op.Name, StepRespond, func() (O, error) {
		if op.Respond == nil {
			return zero, nil
		}

		return op.Respond(ctx, input, verified)
	})
	if err != nil {
		return zero, err
	}

	logger.DebugContext(ctx, "operation completed", slog.Duration("duration", time.Since(start)))

	return result, nil
}

func runStep[T any](
	ctx context.Context,
	logger *slog.Logger,
	operation string,
	step ExecutionStep,
	fn func() (T, error),
) (T, error) {
	out, err := fn()
	if err == nil {
		return out, nil
	}

	level := slog.LevelError
	if step == StepValidate {
		level = slog.LevelWarn
	}

	logger.Log(ctx, level, "step failed",
		slog.String("step", string(step)),
		slog.Any("error", err),
	)

	return out, &ExecutionError{Operation: operation, Step: step, Cause: err}
}

// GetExecutionStep extracts the step from an execution error.
func GetExecutionStep(err error) (ExecutionStep, bool) {
	var execErr *ExecutionError
	if errors.As(err, &execErr) {
		return execErr.Step, true
	}

	return "", false
}
