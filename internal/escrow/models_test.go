package escrow

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApprovalSet(t *testing.T) {
	var a ApprovalSet
	assert.False(t, a.Complete())

	a = a.Grant(PartyBuyer)
	assert.True(t, a.Has(PartyBuyer))
	assert.False(t, a.Has(PartySeller))
	assert.False(t, a.Complete())

	// Granting twice is a no-op.
	assert.Equal(t, a, a.Grant(PartyBuyer))

	a = a.Grant(PartySeller).Grant(PartyGovernment)
	assert.True(t, a.Complete())
}

func TestStatusTerminal(t *testing.T) {
	for _, st := range []Status{StatusCompleted, StatusRefunded, StatusCancelled, StatusFailed} {
		assert.True(t, st.Terminal(), string(st))
	}
	for _, st := range []Status{StatusPending, StatusFunded, StatusVerified} {
		assert.False(t, st.Terminal(), string(st))
	}
}

func TestSettlementRef(t *testing.T) {
	e := &Escrow{ID: 42}
	assert.Equal(t, "escrow-42", e.SettlementRef())
}
