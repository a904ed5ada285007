package repository

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/tanmayk/relaychat/internal/domain"
)

// isForeignKeyViolation reports whether err is a foreign key constraint
// failure. Checks the pgx error code for Postgres and falls back to message
// matching for the sqlite driver used in tests.
func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23503"
	}
	return strings.Contains(strings.ToLower(err.Error()), "foreign key")
}

// storageErr maps low-level storage failures onto the domain taxonomy so
// connectivity problems surface as Unavailable rather than raw driver errors.
func storageErr(op string, err error) error {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, driver.ErrBadConn),
		errors.As(err, &netErr):
		return fmt.Errorf("%s: %v: %w", op, err, domain.ErrUnavailable)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
