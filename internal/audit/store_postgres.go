package audit

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq" // audit trail keeps the pq driver it shipped with

	id "landledger/pkg/domain"
)

// PostgresStore persists the append-only audit trail.
//
// Schema:
//
//	CREATE TABLE audit_events (
//	    id          BIGSERIAL PRIMARY KEY,
//	    occurred_at TIMESTAMPTZ NOT NULL,
//	    actor_id    UUID NOT NULL,
//	    actor_role  TEXT NOT NULL DEFAULT '',
//	    action      TEXT NOT NULL,
//	    record_kind TEXT NOT NULL,
//	    record_id   TEXT NOT NULL,
//	    detail      TEXT NOT NULL DEFAULT '',
//	    device      TEXT NOT NULL DEFAULT ''
//	);
//	CREATE INDEX audit_events_record_idx ON audit_events (record_kind, record_id);
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, event Event) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_events (occurred_at, actor_id, actor_role, action, record_kind, record_id, detail, device)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		event.Timestamp, event.Actor.String(), event.Role, event.Action,
		event.RecordKind, event.RecordID, event.Detail, event.Device,
	)
	if err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByRecord(ctx context.Context, recordKind, recordID string) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT occurred_at, actor_id, actor_role, action, record_kind, record_id, detail, device
		FROM audit_events
		WHERE record_kind = $1 AND record_id = $2
		ORDER BY id`, recordKind, recordID)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var (
			e     Event
			actor string
		)
		if err := rows.Scan(&e.Timestamp, &actor, &e.Role, &e.Action, &e.RecordKind, &e.RecordID, &e.Detail, &e.Device); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		actorID, err := id.ParseUserID(actor)
		if err != nil {
			return nil, fmt.Errorf("scan audit actor: %w", err)
		}
		e.Actor = actorID
		out = append(out, e)
	}
	return out, rows.Err()
}
