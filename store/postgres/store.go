// Package postgres implements store.Store on PostgreSQL through the Grove
// ORM. The schema is managed by the grove migration orchestrator.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/xraph/grove"
	"github.com/xraph/grove/driver"
	"github.com/xraph/grove/drivers/pgdriver"
	"github.com/xraph/grove/migrate"

	"github.com/xraph/patron"
	"github.com/xraph/patron/store"
)

// compile-time interface check
var _ store.Store = (*Store)(nil)

// querier is satisfied by both *pgdriver.PgDB and *pgdriver.PgTx.
type querier interface {
	NewSelect(model ...any) *pgdriver.SelectQuery
	NewInsert(model any) *pgdriver.InsertQuery
	NewUpdate(model any) *pgdriver.UpdateQuery
	NewDelete(model any) *pgdriver.DeleteQuery
	NewRaw(query string, args ...any) *pgdriver.RawQuery
}

// Store implements store.Store using PostgreSQL via Grove ORM.
type Store struct {
	db *grove.DB
	pg *pgdriver.PgDB
	q  querier
	tx *pgdriver.PgTx
}

// New creates a new PostgreSQL store backed by Grove ORM.
func New(db *grove.DB) *Store {
	pg := pgdriver.Unwrap(db)
	return &Store{db: db, pg: pg, q: pg}
}

// Open connects a pgdriver pool to dsn and wraps it in a grove.DB.
func Open(ctx context.Context, dsn string) (*Store, error) {
	pg := pgdriver.New()
	if err := pg.Open(ctx, dsn); err != nil {
		return nil, fmt.Errorf("patron/postgres: connect: %w", err)
	}
	db, err := grove.Open(pg)
	if err != nil {
		_ = pg.Close()
		return nil, fmt.Errorf("patron/postgres: open grove: %w", err)
	}
	return New(db), nil
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.pg)
	if err != nil {
		return fmt.Errorf("%w: create executor: %w", patron.ErrMigrationFailed, err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("%w: %w", patron.ErrMigrationFailed, err)
	}
	return nil
}

// Transact runs fn in a database transaction. Nested calls join the
// outer transaction.
func (s *Store) Transact(ctx context.Context, fn func(ctx context.Context, tx store.Store) error) error {
	if s.tx != nil {
		return fn(ctx, s)
	}
	tx, err := s.pg.BeginTxQuery(ctx, &driver.TxOptions{IsolationLevel: driver.LevelReadCommitted})
	if err != nil {
		return wrap("begin", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(ctx, &Store{db: s.db, pg: s.pg, q: tx, tx: tx}); err != nil {
		return err
	}
	return wrap("commit", tx.Commit())
}

// Lock takes a transaction-scoped advisory lock on key.
func (s *Store) Lock(ctx context.Context, key string) error {
	if s.tx == nil {
		return fmt.Errorf("%w: lock %q outside a transaction", patron.ErrInvalidState, key)
	}
	if _, err := s.q.NewRaw(`SELECT pg_advisory_xact_lock(hashtext($1))`, key).Exec(ctx); err != nil {
		return fmt.Errorf("patron/postgres: lock %q: %w", key, err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Error helpers ====================

const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeSerialization       = "40001"
	codeDeadlock            = "40P01"
)

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows) || errors.Is(err, pgx.ErrNoRows) || errors.Is(err, grove.ErrNoRows)
}

func pgCode(err error) (string, string) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code, pgErr.ConstraintName
	}
	return "", ""
}

// wrap maps driver errors onto Patron sentinels.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	switch code, constraint := pgCode(err); code {
	case codeUniqueViolation:
		if constraint == "patron_profiles_username_key" {
			return patron.ErrUsernameTaken
		}
		return fmt.Errorf("%w: %s: %s", patron.ErrAlreadyExists, op, constraint)
	case codeSerialization, codeDeadlock:
		return fmt.Errorf("%w: %s: %w", patron.ErrTransactionFailed, op, err)
	}
	return fmt.Errorf("patron/postgres: %s: %w", op, err)
}

// affected turns a write result into notFound when it touched no rows.
func affected(op string, notFound error, res driver.Result, err error) error {
	if err != nil {
		return wrap(op, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return wrap(op, err)
	}
	if rows == 0 {
		return notFound
	}
	return nil
}

// scanOne runs a single-row select into its model.
func scanOne(ctx context.Context, q *pgdriver.SelectQuery, op string, notFound error) error {
	if err := q.Scan(ctx); err != nil {
		if isNoRows(err) {
			return notFound
		}
		return wrap(op, err)
	}
	return nil
}

// page applies LIMIT and OFFSET when they are set.
func page(q *pgdriver.SelectQuery, limit, offset int) *pgdriver.SelectQuery {
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}
	return q
}

// fromModels converts a scanned slice with the model's converter.
func fromModels[M, T any](ms []M, from func(*M) (*T, error)) ([]*T, error) {
	out := make([]*T, 0, len(ms))
	for i := range ms {
		v, err := from(&ms[i])
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
