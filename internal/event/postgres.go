package event

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"

	// Registers the postgres driver for OpenPostgres.
	_ "github.com/lib/pq"

	"github.com/pulsenote/pulsenote/internal/tracing"
)

// PostgresSink appends records to an events table.
//
// Expected schema:
//
//	CREATE TABLE IF NOT EXISTS engagement_events (
//	    id          UUID PRIMARY KEY,
//	    kind        TEXT NOT NULL,
//	    post_id     TEXT NOT NULL,
//	    user_id     TEXT NOT NULL,
//	    occurred_at TIMESTAMPTZ NOT NULL,
//	    payload     BYTEA NOT NULL
//	);
//
// The payload column holds the full CBOR-encoded record so the analytics
// side can evolve without schema churn.
type PostgresSink struct {
	db *sql.DB
}

// NewPostgresSink creates a sink writing to the given database handle.
func NewPostgresSink(db *sql.DB) *PostgresSink {
	return &PostgresSink{db: db}
}

// OpenPostgres opens and pings a postgres connection for sink use.
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	return db, nil
}

// Persist appends a record to the events table.
func (s *PostgresSink) Persist(ctx context.Context, rec Record) error {
	payload, err := cbor.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode record %s: %w", rec.EventID(), err)
	}

	ctx, endSpan := tracing.StartDBSpan(ctx, "engagement_events", tracing.DBOperationInsert)

	postID, userID := rec.Subject()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO engagement_events (id, kind, post_id, user_id, occurred_at, payload)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO NOTHING`,
		rec.EventID(), string(rec.Kind()), postID, userID, rec.OccurredAt(), payload,
	)
	endSpan(err)
	if err != nil {
		return fmt.Errorf("failed to insert record %s: %w", rec.EventID(), err)
	}
	return nil
}

// Name implements Sink.
func (s *PostgresSink) Name() string { return "postgres" }
