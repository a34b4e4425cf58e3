package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Postgres error codes handled by the booking path.
const (
	codeSerializationFailure = "40001"
	codeExclusionViolation   = "23P01"
	codeUniqueViolation      = "23505"
)

// serializableAttempts bounds retries on serialization failures before the
// caller gives up and re-reports the outcome of the in-transaction check.
const serializableAttempts = 3

// WithTx runs fn inside a transaction on the request's scoped connection.
// The context passed to fn carries the transaction, so repositories called
// inside fn automatically participate in it.
func WithTx(ctx context.Context, opts pgx.TxOptions, fn func(ctx context.Context) error) error {
	conn, err := scopedConn(ctx)
	if err != nil {
		return err
	}

	tx, err := conn.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(context.WithValue(ctx, txKey, tx)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// WithSerializableTx runs fn in a serializable transaction, retrying when
// Postgres aborts the transaction with a serialization failure. Each retry
// re-runs fn from scratch, so a check-then-insert inside fn observes the
// winner's committed rows on the next attempt.
func WithSerializableTx(ctx context.Context, fn func(ctx context.Context) error) error {
	opts := pgx.TxOptions{IsoLevel: pgx.Serializable}

	var err error
	for attempt := 0; attempt < serializableAttempts; attempt++ {
		err = WithTx(ctx, opts, fn)
		if err == nil || !IsSerializationFailure(err) {
			return err
		}
	}
	return err
}

// IsSerializationFailure reports whether err is a Postgres serialization
// failure (SQLSTATE 40001).
func IsSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == codeSerializationFailure
}

// IsExclusionViolation reports whether err is an exclusion constraint
// violation (SQLSTATE 23P01), raised when two bookings overlap at the
// storage level.
func IsExclusionViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == codeExclusionViolation
}

// IsUniqueViolation reports whether err is a unique constraint violation
// (SQLSTATE 23505).
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation
}
