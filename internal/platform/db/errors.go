package db

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/rentflow/rentflow/internal/shared"
)

const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeUniqueViolation      = "23505"
)

// Classify attaches the shared error class to storage errors. Errors that
// already carry a class pass through untouched.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	for _, class := range []error{shared.ErrValidation, shared.ErrConflict, shared.ErrNotFound, shared.ErrUnauthenticated, shared.ErrTransientIO} {
		if errors.Is(err, class) {
			return err
		}
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeSerializationFailure, codeDeadlockDetected, codeUniqueViolation:
			return fmt.Errorf("%w: %w", shared.ErrConflict, err)
		}
		return err
	}
	var netErr net.Error
	if errors.As(err, &netErr) || pgconn.SafeToRetry(err) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", shared.ErrTransientIO, err)
	}
	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return fmt.Errorf("%w: %w", shared.ErrTransientIO, err)
	}
	return err
}
