//go:build integration

// Package containers starts throwaway infrastructure for integration tests.
// Each helper blocks until the container is reachable and fails the test on
// any startup error; Ryuk reaps the containers after the run.
package containers

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Schema is the full DDL for the ledger. Integration tests apply it to a
// fresh database; deployments manage the same statements through their
// migration tooling.
const Schema = `
CREATE TABLE IF NOT EXISTS parcels (
    id            TEXT PRIMARY KEY,
    owner_id      UUID NOT NULL,
    status        TEXT NOT NULL,
    for_sale      BOOLEAN NOT NULL DEFAULT FALSE,
    price         BIGINT NOT NULL DEFAULT 0,
    boundary_ref  TEXT NOT NULL DEFAULT '',
    document_ref  TEXT NOT NULL DEFAULT '',
    created_at    TIMESTAMPTZ NOT NULL,
    updated_at    TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS parcels_owner_idx ON parcels (owner_id);

CREATE TABLE IF NOT EXISTS parcel_settlements (
    parcel_id      TEXT NOT NULL REFERENCES parcels (id),
    settlement_ref TEXT NOT NULL,
    recorded_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (parcel_id, settlement_ref)
);

CREATE TABLE IF NOT EXISTS escrows (
    id            BIGSERIAL PRIMARY KEY,
    parcel_id     TEXT NOT NULL,
    seller_id     UUID NOT NULL,
    buyer_id      UUID NOT NULL,
    amount        BIGINT NOT NULL,
    fee           BIGINT NOT NULL,
    deposited     BIGINT NOT NULL DEFAULT 0,
    status        TEXT NOT NULL,
    approvals     SMALLINT NOT NULL DEFAULT 0,
    document_ref  TEXT NOT NULL DEFAULT '',
    cancel_reason TEXT NOT NULL DEFAULT '',
    created_at    TIMESTAMPTZ NOT NULL,
    deadline      TIMESTAMPTZ NOT NULL,
    completed_at  TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS escrows_buyer_idx ON escrows (buyer_id);
CREATE INDEX IF NOT EXISTS escrows_seller_idx ON escrows (seller_id);

CREATE TABLE IF NOT EXISTS inheritance_plans (
    id             BIGSERIAL PRIMARY KEY,
    owner_id       UUID NOT NULL,
    parcel_ids     TEXT[] NOT NULL,
    status         TEXT NOT NULL,
    use_milestones BOOLEAN NOT NULL,
    heirs          JSONB NOT NULL DEFAULT '[]',
    milestones     JSONB NOT NULL DEFAULT '[]',
    will_ref       TEXT NOT NULL DEFAULT '',
    death_cert_ref TEXT NOT NULL DEFAULT '',
    created_at     TIMESTAMPTZ NOT NULL,
    triggered_at   TIMESTAMPTZ,
    completed_at   TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS inheritance_plans_owner_idx ON inheritance_plans (owner_id);
CREATE INDEX IF NOT EXISTS inheritance_plans_parcels_idx ON inheritance_plans USING GIN (parcel_ids);
CREATE UNIQUE INDEX IF NOT EXISTS inheritance_plans_owner_in_force_idx
    ON inheritance_plans (owner_id)
    WHERE status IN ('ACTIVE', 'TRIGGERED', 'EXECUTING');

CREATE TABLE IF NOT EXISTS audit_events (
    id          BIGSERIAL PRIMARY KEY,
    occurred_at TIMESTAMPTZ NOT NULL,
    actor_id    UUID NOT NULL,
    actor_role  TEXT NOT NULL DEFAULT '',
    action      TEXT NOT NULL,
    record_kind TEXT NOT NULL,
    record_id   TEXT NOT NULL,
    detail      TEXT NOT NULL DEFAULT '',
    device      TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS audit_events_record_idx ON audit_events (record_kind, record_id);
`

// PostgresContainer wraps a testcontainers PostgreSQL instance with the
// ledger schema applied.
type PostgresContainer struct {
	Container testcontainers.Container
	URL       string
	DB        *sql.DB
}

// NewPostgresContainer starts PostgreSQL and applies the schema.
func NewPostgresContainer(t *testing.T) *PostgresContainer {
	t.Helper()

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("landledger"),
		tcpostgres.WithUsername("landledger"),
		tcpostgres.WithPassword("landledger"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	url, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to get postgres connection string: %v", err)
	}

	db, err := sql.Open("pgx", url)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to open postgres: %v", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		_ = container.Terminate(ctx)
		t.Fatalf("failed to ping postgres: %v", err)
	}
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		_ = db.Close()
		_ = container.Terminate(ctx)
		t.Fatalf("failed to apply schema: %v", err)
	}

	t.Cleanup(func() {
		_ = db.Close()
		_ = container.Terminate(context.Background())
	})

	return &PostgresContainer{Container: container, URL: url, DB: db}
}

// TruncateAll resets every table. Use between tests sharing one container.
func (p *PostgresContainer) TruncateAll(ctx context.Context) error {
	_, err := p.DB.ExecContext(ctx, `
		TRUNCATE parcel_settlements, parcels, escrows, inheritance_plans, audit_events
		RESTART IDENTITY CASCADE`)
	return err
}
