package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "landledger/pkg/domain"
	"landledger/pkg/requestcontext"
)

type captureSink struct {
	mu     sync.Mutex
	events []Event
	fail   bool
}

func (c *captureSink) Append(_ context.Context, event Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.New("sink down")
	}
	c.events = append(c.events, event)
	return nil
}

func (c *captureSink) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

func TestPublisherStampsRequestTime(t *testing.T) {
	store := NewInMemoryStore()
	publisher := NewPublisher(store)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ctx := requestcontext.WithTime(context.Background(), now)

	err := publisher.Emit(ctx, Event{
		Actor:      id.UserID(uuid.New()),
		Action:     ActionEscrowFunded,
		RecordKind: "escrow",
		RecordID:   "1",
	})
	require.NoError(t, err)

	events, err := store.ListByRecord(ctx, "escrow", "1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, now, events[0].Timestamp)
}

func TestPublisherFansOutToSinks(t *testing.T) {
	store := NewInMemoryStore()
	sink := &captureSink{}
	publisher := NewPublisher(store, WithSink(sink))

	err := publisher.Emit(context.Background(), Event{Action: ActionPlanCreated, RecordKind: "plan", RecordID: "7"})
	require.NoError(t, err)
	assert.Equal(t, 1, sink.count())
}

func TestPublisherSinkFailureIsBestEffort(t *testing.T) {
	store := NewInMemoryStore()
	sink := &captureSink{fail: true}
	publisher := NewPublisher(store, WithSink(sink))

	// The store is the record; a failing secondary sink must not surface.
	err := publisher.Emit(context.Background(), Event{Action: ActionPlanCreated, RecordKind: "plan", RecordID: "7"})
	require.NoError(t, err)

	events, err := store.ListByRecord(context.Background(), "plan", "7")
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestPublisherAsyncCloseDrains(t *testing.T) {
	store := NewInMemoryStore()
	publisher := NewPublisher(store, WithAsyncBuffer(16))

	for i := 0; i < 10; i++ {
		require.NoError(t, publisher.Emit(context.Background(), Event{
			Action:     ActionShareClaimed,
			RecordKind: "plan",
			RecordID:   "3",
		}))
	}
	publisher.Close()

	events, err := store.ListByRecord(context.Background(), "plan", "3")
	require.NoError(t, err)
	assert.Len(t, events, 10)
}

func TestStoreFiltersByRecord(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, Event{RecordKind: "parcel", RecordID: "A", Action: ActionParcelListed}))
	require.NoError(t, store.Append(ctx, Event{RecordKind: "parcel", RecordID: "B", Action: ActionParcelListed}))
	require.NoError(t, store.Append(ctx, Event{RecordKind: "escrow", RecordID: "A", Action: ActionEscrowCreated}))

	events, err := store.ListByRecord(ctx, "parcel", "A")
	require.NoError(t, err)
	assert.Len(t, events, 1)
}
