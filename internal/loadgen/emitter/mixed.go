package emitter

import (
	"context"
	"errors"
	"fmt"
)

// Mixed rotates round-robin across a set of sub-emitters, one per send.
//
// Each Mixed instance owns its own sub-emitters, so per-worker mixed traffic
// needs no coordination. Sub-emitters that cannot be constructed (a ping
// socket denied by the OS, typically) are skipped with their error recorded;
// construction only fails when no sub-emitter at all is available.
type Mixed struct {
	emitters []Emitter
	next     int
	skipped  []error
}

// NewMixed creates a mixed emitter composing the configured sub-variants.
func NewMixed(cfg Config) (*Mixed, error) {
	types := cfg.MixedTypes
	if len(types) == 0 {
		types = []Type{TypeUDP, TypeTCPConnect, TypePing, TypeHTTP}
	}

	m := &Mixed{}
	for _, t := range types {
		if t == TypeMixed {
			return nil, errors.New("mixed emitter cannot nest itself")
		}
		e, err := New(t, cfg)
		if err != nil {
			m.skipped = append(m.skipped, fmt.Errorf("%s: %w", t, err))
			continue
		}
		m.emitters = append(m.emitters, e)
	}

	if len(m.emitters) == 0 {
		return nil, fmt.Errorf("mixed emitter: no usable sub-emitters: %w",
			errors.Join(m.skipped...))
	}

	return m, nil
}

// Type returns TypeMixed.
func (m *Mixed) Type() Type {
	return TypeMixed
}

// Send delegates to the next sub-emitter in rotation.
func (m *Mixed) Send(ctx context.Context) (int, error) {
	e := m.emitters[m.next]
	m.next = (m.next + 1) % len(m.emitters)
	return e.Send(ctx)
}

// Skipped returns construction errors for sub-variants that were left out.
func (m *Mixed) Skipped() []error {
	return m.skipped
}

// Close closes every sub-emitter, returning the first error.
func (m *Mixed) Close() error {
	var firstErr error
	for _, e := range m.emitters {
		if err := e.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

var _ Emitter = (*Mixed)(nil)
