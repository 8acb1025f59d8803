package parcel

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	id "landledger/pkg/domain"
	"landledger/pkg/platform/sentinel"
)

// PostgresStore persists parcels in PostgreSQL.
//
// Schema:
//
//	CREATE TABLE parcels (
//	    id            TEXT PRIMARY KEY,
//	    owner_id      UUID NOT NULL,
//	    status        TEXT NOT NULL,
//	    for_sale      BOOLEAN NOT NULL DEFAULT FALSE,
//	    price         BIGINT NOT NULL DEFAULT 0,
//	    boundary_ref  TEXT NOT NULL DEFAULT '',
//	    document_ref  TEXT NOT NULL DEFAULT '',
//	    created_at    TIMESTAMPTZ NOT NULL,
//	    updated_at    TIMESTAMPTZ NOT NULL
//	);
//	CREATE INDEX parcels_owner_idx ON parcels (owner_id);
//
//	CREATE TABLE parcel_settlements (
//	    parcel_id      TEXT NOT NULL REFERENCES parcels (id),
//	    settlement_ref TEXT NOT NULL,
//	    recorded_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
//	    PRIMARY KEY (parcel_id, settlement_ref)
//	);
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func (s *PostgresStore) Create(ctx context.Context, p *Parcel) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO parcels (id, owner_id, status, for_sale, price, boundary_ref, document_ref, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		string(p.ID), p.Owner.String(), string(p.Status), p.ForSale, int64(p.Price),
		p.BoundaryRef, p.DocumentRef, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert parcel: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, parcelID id.ParcelID) (*Parcel, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, owner_id, status, for_sale, price, boundary_ref, document_ref, created_at, updated_at
		FROM parcels WHERE id = $1`, string(parcelID))
	return scanParcel(row)
}

func (s *PostgresStore) ListByOwner(ctx context.Context, owner id.UserID) ([]*Parcel, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, owner_id, status, for_sale, price, boundary_ref, document_ref, created_at, updated_at
		FROM parcels WHERE owner_id = $1 ORDER BY id`, owner.String())
	if err != nil {
		return nil, fmt.Errorf("list parcels: %w", err)
	}
	defer rows.Close()

	var out []*Parcel
	for rows.Next() {
		p, err := scanParcel(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Update(ctx context.Context, p *Parcel) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE parcels
		SET owner_id = $2, status = $3, for_sale = $4, price = $5, boundary_ref = $6, document_ref = $7, updated_at = $8
		WHERE id = $1`,
		string(p.ID), p.Owner.String(), string(p.Status), p.ForSale, int64(p.Price),
		p.BoundaryRef, p.DocumentRef, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update parcel: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update parcel: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) RecordSettlement(ctx context.Context, parcelID id.ParcelID, settlementRef string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO parcel_settlements (parcel_id, settlement_ref) VALUES ($1, $2)`,
		string(parcelID), settlementRef,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("record settlement: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanParcel(row rowScanner) (*Parcel, error) {
	var (
		p        Parcel
		parcelID string
		owner    string
		status   string
		price    int64
	)
	err := row.Scan(&parcelID, &owner, &status, &p.ForSale, &price, &p.BoundaryRef, &p.DocumentRef, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan parcel: %w", err)
	}
	ownerID, err := id.ParseUserID(owner)
	if err != nil {
		return nil, fmt.Errorf("scan parcel owner: %w", err)
	}
	p.ID = id.ParcelID(parcelID)
	p.Owner = ownerID
	p.Status = Status(status)
	p.Price = uint64(price)
	return &p, nil
}
