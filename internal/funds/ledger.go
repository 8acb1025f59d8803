// Package funds defines the payment collaborator contract. The settlement
// engines treat a transfer as all-or-nothing: it either fully succeeds or
// fully fails with no partial movement. The in-memory ledger backs
// development and tests; production wires the payment service adapter.
package funds

import (
	"context"

	id "landledger/pkg/domain"
)

// Ledger is the atomic fund-transfer primitive.
type Ledger interface {
	// Transfer moves amount from one account to another. It either fully
	// succeeds or fully fails; the engines never observe a partial move.
	Transfer(ctx context.Context, from, to id.AccountID, amount uint64) error
	// Balance reports the committed balance of an account.
	Balance(ctx context.Context, account id.AccountID) (uint64, error)
	// Deposit credits an account from outside the system (buyer funding).
	Deposit(ctx context.Context, account id.AccountID, amount uint64) error
}
