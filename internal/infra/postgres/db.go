// Package postgres holds the durable stores: quiz definitions (pgx), sessions and answer events (bun).
package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"net"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"live-quiz-service/internal/domain"
)

// Open returns a bun handle over pgdriver. The connection is established lazily.
func Open(dsn string) *bun.DB {
	sqldb := sql.OpenDB(pgdriver.NewConnector(
		pgdriver.WithDSN(dsn),
		pgdriver.WithTimeout(5*time.Second),
	))
	return bun.NewDB(sqldb, pgdialect.New())
}

// Ping checks connectivity.
func Ping(ctx context.Context, db *bun.DB) error {
	if err := db.PingContext(ctx); err != nil {
		return domain.Transient(err)
	}
	return nil
}

// constraintViolated reports whether err is an integrity violation of the named constraint.
func constraintViolated(err error, constraint string) bool {
	var pgErr pgdriver.Error
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.IntegrityViolation() && pgErr.Field('n') == constraint
}

// translate maps driver failures onto the domain taxonomy: connectivity problems and timeouts
// become retryable, everything else is passed through.
func translate(err error) error {
	if err == nil {
		return nil
	}
	var netErr net.Error
	var pgErr pgdriver.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, driver.ErrBadConn),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.As(err, &netErr):
		return domain.Transient(err)
	case errors.As(err, &pgErr) && retryableState(pgErr.Field('C')):
		return domain.Transient(err)
	}
	return err
}

// query_canceled (statement timeout), admin_shutdown, cannot_connect_now
func retryableState(code string) bool {
	switch code {
	case "57014", "57P01", "57P03":
		return true
	}
	return false
}
