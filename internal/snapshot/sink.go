package snapshot

import (
	"context"
	"errors"
	"fmt"
)

// Sink persists snapshots.
type Sink interface {
	Name() string
	Write(ctx context.Context, s *Snapshot) error
}

// MultiSink writes to every sink and joins their errors.
type MultiSink []Sink

// Name implements Sink.
func (m MultiSink) Name() string {
	return "multi"
}

// Write implements Sink.
func (m MultiSink) Write(ctx context.Context, s *Snapshot) error {
	_, err := m.WriteAll(ctx, s)
	return err
}

// WriteAll writes s to every sink and returns the names of those that
// succeeded. A failing sink does not stop the others.
func (m MultiSink) WriteAll(ctx context.Context, s *Snapshot) ([]string, error) {
	written := []string{}
	var errs []error
	for _, sink := range m {
		if err := sink.Write(ctx, s); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", sink.Name(), err))
			continue
		}
		written = append(written, sink.Name())
	}
	return written, errors.Join(errs...)
}
