// Package storage owns the database handle lifecycle: it opens the pgx
// connection pool, applies embedded migrations on startup, and releases
// the pool at shutdown. The handle is constructed once and passed by
// reference into every component that needs it.
package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/tasksync/internal/server/migrations"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// Postgres is the long-lived database handle for the server process.
type Postgres struct {
	db *sql.DB
}

// Open connects to PostgreSQL and runs pending migrations.
func Open(ctx context.Context, dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	p := &Postgres{db: db}
	if err := p.runMigrations(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migration error: %w", err)
	}
	return p, nil
}

// Conn exposes the underlying pool for services and repositories.
func (p *Postgres) Conn() *sql.DB {
	return p.db
}

// Close releases the connection pool.
func (p *Postgres) Close() error {
	return p.db.Close()
}

func (p *Postgres) runMigrations(ctx context.Context) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	return goose.UpContext(ctx, p.db, ".")
}
