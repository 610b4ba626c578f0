// Package postgres implements the repositories on PostgreSQL with sqlx.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/synera-br/splennet-backend/internal/db"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

const uniqueViolation = "23505"

// Open connects to PostgreSQL and checks the connection.
func Open(ctx context.Context, dsn string) (*sqlx.DB, error) {
	conn, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	return conn, nil
}

// Migrate applies the embedded schema migrations.
func Migrate(conn *sql.DB) error {
	src, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}
	driver, err := migratepg.WithInstance(conn, &migratepg.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

// NewStore builds the PostgreSQL repositories on one connection pool.
func NewStore(conn *sqlx.DB) *db.Store {
	return &db.Store{
		Entitlements: NewEntitlementRepository(conn),
		Essays:       NewEssayRepository(conn),
		Reviews:      NewReviewRepository(conn),
		Usage:        NewUsageRepository(conn),
		Webhooks:     NewWebhookEventRepository(conn),
		Submitter:    NewReviewSubmitter(conn),
		Close:        conn.Close,
	}
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

// expectRow maps a write that touched no row to db.ErrNotFound.
func expectRow(res sql.Result, what, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows for %s '%s': %w", what, id, err)
	}
	if n == 0 {
		return fmt.Errorf("%s with ID '%s' not found: %w", what, id, db.ErrNotFound)
	}
	return nil
}

// jsonColumn encodes a map for a JSONB column. Empty maps are stored as NULL.
func jsonColumn[M ~map[K]V, K comparable, V any](m M) ([]byte, error) {
	if len(m) == 0 {
		return nil, nil
	}
	return json.Marshal(m)
}
