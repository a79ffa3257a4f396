package store

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/JonMunkholm/gradebook/internal/apperr"
)

// PostgreSQL error codes the store translates.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgNotNullViolation    = "23502"
	pgCheckViolation      = "23514"
	pgConnectionClass     = "08"
	pgAdminShutdown       = "57P01"
	pgCannotConnectNow    = "57P03"
)

// translate maps pgx failures onto the apperr taxonomy. Errors it does not
// recognize are returned unchanged.
func translate(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == pgUniqueViolation:
			return apperr.WrapStatus(http.StatusConflict, fmt.Errorf("duplicate key %s: %w", pgErr.ConstraintName, err))
		case pgErr.Code == pgForeignKeyViolation:
			return apperr.WrapStatus(http.StatusConflict, fmt.Errorf("foreign key %s: %w", pgErr.ConstraintName, err))
		case pgErr.Code == pgNotNullViolation || pgErr.Code == pgCheckViolation:
			return apperr.WrapStatus(http.StatusUnprocessableEntity, fmt.Errorf("required value missing for %s: %w", pgErr.ColumnName, err))
		case len(pgErr.Code) == 5 && pgErr.Code[:2] == pgConnectionClass,
			pgErr.Code == pgAdminShutdown, pgErr.Code == pgCannotConnectNow:
			return fmt.Errorf("%w: %w", apperr.ErrNetwork, err)
		}
		return apperr.WrapStatus(http.StatusInternalServerError, err)
	}

	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) || pgconn.Timeout(err) {
		return fmt.Errorf("%w: %w", apperr.ErrNetwork, err)
	}
	return err
}
