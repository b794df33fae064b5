package health

import (
	"context"
	"database/sql"
)

// PostgresChecker implements health checking for the Postgres event store.
type PostgresChecker struct {
	db *sql.DB
}

// NewPostgresChecker creates a new Postgres health checker.
func NewPostgresChecker(db *sql.DB) *PostgresChecker {
	return &PostgresChecker{
		db: db,
	}
}

// HealthCheck performs a health check by pinging the database.
func (p *PostgresChecker) HealthCheck(ctx context.Context) error {
	return p.db.PingContext(ctx)
}
