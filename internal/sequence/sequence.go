// Package sequence allocates request identifiers from a named, durable
// counter. Identifiers are opaque strings, unique per scope across all
// worker processes.
package sequence

import (
	"context"
	"fmt"
)

// Sequencer hands out the next identifier for a scope.
type Sequencer interface {
	NextID(ctx context.Context, scope string) (string, error)
}

// valueSource is the storage operation backing the Postgres sequencer.
// Implemented by storage.Queries.
type valueSource interface {
	NextSequenceValue(ctx context.Context, scope string) (int64, error)
}

// PGSequencer allocates identifiers from the id_sequences table. The
// counter upsert is a single statement, so concurrent processes never
// observe the same value.
type PGSequencer struct {
	queries valueSource
}

// NewPGSequencer creates a PGSequencer backed by the given queries.
func NewPGSequencer(queries valueSource) *PGSequencer {
	return &PGSequencer{queries: queries}
}

// NextID returns the next identifier for scope, rendered as the scope key
// followed by a zero-padded counter, e.g. "mail_request-0000000042".
func (s *PGSequencer) NextID(ctx context.Context, scope string) (string, error) {
	value, err := s.queries.NextSequenceValue(ctx, scope)
	if err != nil {
		return "", fmt.Errorf("next sequence value for %s: %w", scope, err)
	}
	return Format(scope, value), nil
}

// Format renders a scope and counter value as a request identifier.
// Zero padding keeps lexicographic order aligned with allocation order,
// which the dispatch engine relies on for ascending-id processing.
func Format(scope string, value int64) string {
	return fmt.Sprintf("%s-%010d", scope, value)
}
