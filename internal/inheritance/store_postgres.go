package inheritance

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	id "landledger/pkg/domain"
	"landledger/pkg/platform/sentinel"
)

// PostgresStore persists plans in PostgreSQL. Heirs and milestones are
// embedded documents: they only ever change through their plan, under the
// plan's record lock, so a row per plan keeps reads and writes single-trip.
//
// Schema:
//
//	CREATE TABLE inheritance_plans (
//	    id             BIGSERIAL PRIMARY KEY,
//	    owner_id       UUID NOT NULL,
//	    parcel_ids     TEXT[] NOT NULL,
//	    status         TEXT NOT NULL,
//	    use_milestones BOOLEAN NOT NULL,
//	    heirs          JSONB NOT NULL DEFAULT '[]',
//	    milestones     JSONB NOT NULL DEFAULT '[]',
//	    will_ref       TEXT NOT NULL DEFAULT '',
//	    death_cert_ref TEXT NOT NULL DEFAULT '',
//	    created_at     TIMESTAMPTZ NOT NULL,
//	    triggered_at   TIMESTAMPTZ,
//	    completed_at   TIMESTAMPTZ
//	);
//	CREATE INDEX inheritance_plans_owner_idx ON inheritance_plans (owner_id);
//	CREATE INDEX inheritance_plans_parcels_idx ON inheritance_plans USING GIN (parcel_ids);
//	CREATE UNIQUE INDEX inheritance_plans_owner_in_force_idx
//	    ON inheritance_plans (owner_id)
//	    WHERE status IN ('ACTIVE', 'TRIGGERED', 'EXECUTING');
//
// The partial unique index is the cross-instance backstop for the one-plan-
// per-owner rule; Create surfaces its violation as sentinel.ErrConflict.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const planStatusesInForce = `('ACTIVE', 'TRIGGERED', 'EXECUTING')`

func (s *PostgresStore) Create(ctx context.Context, p *Plan) (id.PlanID, error) {
	heirs, milestones, err := marshalNested(p)
	if err != nil {
		return 0, err
	}
	var handle int64
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO inheritance_plans (owner_id, parcel_ids, status, use_milestones, heirs, milestones, will_ref, death_cert_ref, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`,
		p.Owner.String(), pq.Array(parcelStrings(p.ParcelIDs)), string(p.Status), p.UseAgeMilestones,
		heirs, milestones, p.WillRef, p.DeathCertRef, p.CreatedAt,
	).Scan(&handle)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, sentinel.ErrConflict
		}
		return 0, fmt.Errorf("insert plan: %w", err)
	}
	return id.PlanID(handle), nil
}

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func (s *PostgresStore) Get(ctx context.Context, planID id.PlanID) (*Plan, error) {
	row := s.db.QueryRowContext(ctx, selectPlan+` WHERE id = $1`, int64(planID))
	return scanPlan(row)
}

func (s *PostgresStore) Update(ctx context.Context, p *Plan) error {
	heirs, milestones, err := marshalNested(p)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE inheritance_plans
		SET status = $2, heirs = $3, milestones = $4, death_cert_ref = $5, triggered_at = $6, completed_at = $7
		WHERE id = $1`,
		int64(p.ID), string(p.Status), heirs, milestones, p.DeathCertRef,
		nullTime(p.TriggeredAt), nullTime(p.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("update plan: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update plan: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListByOwner(ctx context.Context, owner id.UserID) ([]*Plan, error) {
	rows, err := s.db.QueryContext(ctx, selectPlan+` WHERE owner_id = $1 ORDER BY id`, owner.String())
	if err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	defer rows.Close()

	var out []*Plan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PostgresStore) OwnerHasPlanInForce(ctx context.Context, owner id.UserID) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM inheritance_plans WHERE owner_id = $1 AND status IN `+planStatusesInForce+`)`,
		owner.String(),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check owner plans: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) ParcelInPlanInForce(ctx context.Context, parcelID id.ParcelID) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM inheritance_plans WHERE $1 = ANY(parcel_ids) AND status IN `+planStatusesInForce+`)`,
		string(parcelID),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check parcel plans: %w", err)
	}
	return exists, nil
}

const selectPlan = `
	SELECT id, owner_id, parcel_ids, status, use_milestones, heirs, milestones, will_ref, death_cert_ref, created_at, triggered_at, completed_at
	FROM inheritance_plans`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPlan(row rowScanner) (*Plan, error) {
	var (
		p           Plan
		handle      int64
		owner       string
		parcels     pq.StringArray
		status      string
		heirs       []byte
		milestones  []byte
		triggeredAt sql.NullTime
		completedAt sql.NullTime
	)
	err := row.Scan(&handle, &owner, &parcels, &status, &p.UseAgeMilestones,
		&heirs, &milestones, &p.WillRef, &p.DeathCertRef, &p.CreatedAt, &triggeredAt, &completedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan plan: %w", err)
	}

	ownerID, err := id.ParseUserID(owner)
	if err != nil {
		return nil, fmt.Errorf("scan plan owner: %w", err)
	}
	if err := json.Unmarshal(heirs, &p.Heirs); err != nil {
		return nil, fmt.Errorf("scan plan heirs: %w", err)
	}
	if err := json.Unmarshal(milestones, &p.Milestones); err != nil {
		return nil, fmt.Errorf("scan plan milestones: %w", err)
	}

	p.ID = id.PlanID(handle)
	p.Owner = ownerID
	p.Status = Status(status)
	p.ParcelIDs = make([]id.ParcelID, len(parcels))
	for i, raw := range parcels {
		p.ParcelIDs[i] = id.ParcelID(raw)
	}
	if triggeredAt.Valid {
		t := triggeredAt.Time
		p.TriggeredAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		p.CompletedAt = &t
	}
	return &p, nil
}

func marshalNested(p *Plan) ([]byte, []byte, error) {
	heirs, err := json.Marshal(orEmptyHeirs(p.Heirs))
	if err != nil {
		return nil, nil, fmt.Errorf("marshal heirs: %w", err)
	}
	milestones, err := json.Marshal(orEmptyMilestones(p.Milestones))
	if err != nil {
		return nil, nil, fmt.Errorf("marshal milestones: %w", err)
	}
	return heirs, milestones, nil
}

func orEmptyHeirs(h []Heir) []Heir {
	if h == nil {
		return []Heir{}
	}
	return h
}

func orEmptyMilestones(m []Milestone) []Milestone {
	if m == nil {
		return []Milestone{}
	}
	return m
}

func parcelStrings(ids []id.ParcelID) []string {
	out := make([]string, len(ids))
	for i, p := range ids {
		out[i] = string(p)
	}
	return out
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
