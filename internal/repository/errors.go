// Package repository implements persistence for the booking engine: a
// MySQL store whose transactions take row locks on the facility and
// booking being changed, per-table repositories used by that store, user
// and refresh-token repositories for the auth endpoints, and an
// in-memory store with the same semantics.
package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/facility-reservation/internal/booking"
)

// ErrEmailExists is returned when registering an email already in use.
var ErrEmailExists = errors.New("email already exists")

// queryer is satisfied by both *sql.DB and *sql.Tx so the same query
// code serves lock-free reads and transactional writes.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// notFound converts sql.ErrNoRows into the engine's not-found error.
func notFound(err error, entity string, id uint64) error {
	if errors.Is(err, sql.ErrNoRows) {
		return &booking.NotFoundError{Entity: entity, ID: id}
	}
	return err
}

// isDuplicate reports a MySQL unique-key violation (1062).
func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == 1062
}

func lastID(res sql.Result) (uint64, error) {
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// placeholders returns "?,?,?" for n arguments.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	b := make([]byte, 0, 2*n-1)
	for i := 0; i < n; i++ {
		if i > 0 {
			b = append(b, ',')
		}
		b = append(b, '?')
	}
	return string(b)
}
