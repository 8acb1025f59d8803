package escrow

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	id "landledger/pkg/domain"
	"landledger/pkg/platform/sentinel"
)

// PostgresStore persists escrows in PostgreSQL.
//
// Schema:
//
//	CREATE TABLE escrows (
//	    id            BIGSERIAL PRIMARY KEY,
//	    parcel_id     TEXT NOT NULL,
//	    seller_id     UUID NOT NULL,
//	    buyer_id      UUID NOT NULL,
//	    amount        BIGINT NOT NULL,
//	    fee           BIGINT NOT NULL,
//	    deposited     BIGINT NOT NULL DEFAULT 0,
//	    status        TEXT NOT NULL,
//	    approvals     SMALLINT NOT NULL DEFAULT 0,
//	    document_ref  TEXT NOT NULL DEFAULT '',
//	    cancel_reason TEXT NOT NULL DEFAULT '',
//	    created_at    TIMESTAMPTZ NOT NULL,
//	    deadline      TIMESTAMPTZ NOT NULL,
//	    completed_at  TIMESTAMPTZ
//	);
//	CREATE INDEX escrows_buyer_idx ON escrows (buyer_id);
//	CREATE INDEX escrows_seller_idx ON escrows (seller_id);
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, e *Escrow) (id.EscrowID, error) {
	var handle int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO escrows (parcel_id, seller_id, buyer_id, amount, fee, deposited, status, approvals, document_ref, cancel_reason, created_at, deadline)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id`,
		string(e.ParcelID), e.Seller.String(), e.Buyer.String(), int64(e.Amount), int64(e.Fee),
		int64(e.Deposited), string(e.Status), int16(e.Approvals), e.DocumentRef, e.CancelReason,
		e.CreatedAt, e.Deadline,
	).Scan(&handle)
	if err != nil {
		return 0, fmt.Errorf("insert escrow: %w", err)
	}
	return id.EscrowID(handle), nil
}

func (s *PostgresStore) Get(ctx context.Context, escrowID id.EscrowID) (*Escrow, error) {
	row := s.db.QueryRowContext(ctx, selectEscrow+` WHERE id = $1`, int64(escrowID))
	return scanEscrow(row)
}

func (s *PostgresStore) Update(ctx context.Context, e *Escrow) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE escrows
		SET deposited = $2, status = $3, approvals = $4, cancel_reason = $5, completed_at = $6
		WHERE id = $1`,
		int64(e.ID), int64(e.Deposited), string(e.Status), int16(e.Approvals), e.CancelReason, nullTime(e.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("update escrow: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update escrow: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListByParty(ctx context.Context, party id.UserID) ([]*Escrow, error) {
	rows, err := s.db.QueryContext(ctx, selectEscrow+` WHERE buyer_id = $1 OR seller_id = $1 ORDER BY id`, party.String())
	if err != nil {
		return nil, fmt.Errorf("list escrows: %w", err)
	}
	defer rows.Close()

	var out []*Escrow
	for rows.Next() {
		e, err := scanEscrow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

const selectEscrow = `
	SELECT id, parcel_id, seller_id, buyer_id, amount, fee, deposited, status, approvals, document_ref, cancel_reason, created_at, deadline, completed_at
	FROM escrows`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEscrow(row rowScanner) (*Escrow, error) {
	var (
		e           Escrow
		handle      int64
		parcelID    string
		seller      string
		buyer       string
		amount      int64
		fee         int64
		deposited   int64
		status      string
		approvals   int16
		completedAt sql.NullTime
	)
	err := row.Scan(&handle, &parcelID, &seller, &buyer, &amount, &fee, &deposited, &status,
		&approvals, &e.DocumentRef, &e.CancelReason, &e.CreatedAt, &e.Deadline, &completedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan escrow: %w", err)
	}

	sellerID, err := id.ParseUserID(seller)
	if err != nil {
		return nil, fmt.Errorf("scan escrow seller: %w", err)
	}
	buyerID, err := id.ParseUserID(buyer)
	if err != nil {
		return nil, fmt.Errorf("scan escrow buyer: %w", err)
	}

	e.ID = id.EscrowID(handle)
	e.ParcelID = id.ParcelID(parcelID)
	e.Seller = sellerID
	e.Buyer = buyerID
	e.Amount = uint64(amount)
	e.Fee = uint64(fee)
	e.Deposited = uint64(deposited)
	e.Status = Status(status)
	e.Approvals = ApprovalSet(approvals)
	if completedAt.Valid {
		t := completedAt.Time
		e.CompletedAt = &t
	}
	return &e, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
