package installer

import (
	"context"
	"errors"
	"fmt"

	"machine-bootstrap/internal/logger"
)

// Method is one way of installing a tool.
type Method struct {
	Name    string
	Install func(ctx context.Context) error
}

// Chain tries methods in order until one succeeds. Each attempt is logged
// once under step. When all methods fail the returned error wraps
// ErrAllMethodsFailed and every method's error.
func Chain(ctx context.Context, log *logger.Logger, step string, methods ...Method) error {
	if len(methods) == 0 {
		return fmt.Errorf("%w: no methods", ErrAllMethodsFailed)
	}
	errs := []error{ErrAllMethodsFailed}
	for _, m := range methods {
		if err := ctx.Err(); err != nil {
			return err
		}
		log.Info(step, "attempt: %s", m.Name)
		err := m.Install(ctx)
		if err == nil {
			log.Success(step, "installed via %s", m.Name)
			return nil
		}
		log.Warn(step, "%s failed: %v", m.Name, err)
		errs = append(errs, fmt.Errorf("%s: %w", m.Name, err))
	}
	return errors.Join(errs...)
}
