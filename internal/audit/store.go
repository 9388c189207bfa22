package audit

import (
	"context"
	"errors"
)

// Sink accepts events. Kafka is write-only, so it is a Sink but not a Store.
type Sink interface {
	Append(ctx context.Context, event Event) error
}

// Store is a Sink that can also be queried.
type Store interface {
	Sink
	ListBySubject(ctx context.Context, subject string) ([]Event, error)
}

// MultiSink appends to every sink in order and joins their errors.
type MultiSink []Sink

func (m MultiSink) Append(ctx context.Context, event Event) error {
	var errs []error
	for _, s := range m {
		if err := s.Append(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
