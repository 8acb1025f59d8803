package funds

import (
	"context"
	"sync"

	id "landledger/pkg/domain"
	dErrors "landledger/pkg/domain-errors"
)

// InMemoryLedger keeps balances in a map under one mutex, which makes every
// transfer atomic by construction.
type InMemoryLedger struct {
	mu       sync.RWMutex
	balances map[id.AccountID]uint64
}

func NewInMemoryLedger() *InMemoryLedger {
	return &InMemoryLedger{balances: make(map[id.AccountID]uint64)}
}

func (l *InMemoryLedger) Transfer(_ context.Context, from, to id.AccountID, amount uint64) error {
	if from == to {
		return dErrors.New(dErrors.CodeInvalidInput, "transfer to self")
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	balance := l.balances[from]
	if balance < amount {
		return dErrors.Newf(dErrors.CodeInsufficientFunds, "account %s holds %d, needs %d", from, balance, amount)
	}
	l.balances[from] = balance - amount
	l.balances[to] += amount
	return nil
}

func (l *InMemoryLedger) Balance(_ context.Context, account id.AccountID) (uint64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balances[account], nil
}

func (l *InMemoryLedger) Deposit(_ context.Context, account id.AccountID, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[account] += amount
	return nil
}
