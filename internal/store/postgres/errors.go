package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"inventory-ledger/internal/core"
)

// SQLSTATE codes the store reacts to.
const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeForeignKeyViolation  = "23503"
	codeUniqueViolation      = "23505"
	codeCheckViolation       = "23514"
	codeNumericOutOfRange    = "22003"
)

// classify attaches the matching core sentinel to a driver error while keeping the
// original error in the chain.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeSerializationFailure, codeDeadlockDetected:
			return fmt.Errorf("%w: %w", core.ErrTransientStore, err)
		case codeUniqueViolation:
			return fmt.Errorf("%w: %s", core.ErrConflict, pgErr.Detail)
		case codeForeignKeyViolation:
			return fmt.Errorf("%w: %s", core.ErrNotFound, pgErr.Detail)
		case codeCheckViolation:
			return fmt.Errorf("%w: %s", core.ErrValidation, pgErr.Message)
		case codeNumericOutOfRange:
			return fmt.Errorf("%w: quantity exceeds the storable range", core.ErrValidation)
		}
		return err
	}

	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) ||
		pgconn.Timeout(err) ||
		pgconn.SafeToRetry(err) ||
		errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", core.ErrTransientStore, err)
	}
	return err
}
