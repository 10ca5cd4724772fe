package db

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound indicates no rows matched the query.
	ErrNotFound = errors.New("not found")
	// ErrConflict indicates a uniqueness or integrity conflict.
	ErrConflict = errors.New("conflict")
)

// mapPgErr translates integrity violations to ErrConflict.
func mapPgErr(err error) error {
	if err == nil {
		return nil
	}
	var pe *pgconn.PgError
	if errors.As(err, &pe) {
		switch pe.Code {
		case "23505", "23503": // unique_violation, foreign_key_violation
			return fmt.Errorf("%w: %s", ErrConflict, pe.Message)
		}
	}
	return err
}

// mapRowErr translates pgx's no-rows error to ErrNotFound.
func mapRowErr(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return mapPgErr(err)
}
