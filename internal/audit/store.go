package audit

import "context"

// Sink accepts audit events. Stores are sinks that can also be queried; the
// kafka producer is append-only.
type Sink interface {
	Append(ctx context.Context, event Event) error
}

// Store is a queryable audit sink. The trail is append-only: there is no
// update or delete.
type Store interface {
	Sink
	ListByRecord(ctx context.Context, recordKind, recordID string) ([]Event, error)
}
