// decisionsink.go provides an in-memory implementation of DecisionSink.
//
// It stores every published event for inspection and can forward each event
// to a callback, which the "once" CLI mode uses to print the decision.
package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/archon-research/stl/pyth-keeper/internal/ports/outbound"
)

var _ outbound.DecisionSink = (*DecisionSink)(nil)

// ErrSinkClosed is returned by Publish after Close.
var ErrSinkClosed = errors.New("decision sink is closed")

// DecisionSink is an in-memory implementation of the DecisionSink port.
type DecisionSink struct {
	mu     sync.RWMutex
	events []outbound.DecisionEvent
	closed bool

	onPublish func(outbound.DecisionEvent) error
}

// NewDecisionSink creates an empty sink.
func NewDecisionSink() *DecisionSink {
	return &DecisionSink{}
}

// SetOnPublish registers a callback run for every published event.
// A callback error is returned from Publish and the event is not stored.
func (s *DecisionSink) SetOnPublish(fn func(outbound.DecisionEvent) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onPublish = fn
}

// Publish stores the event.
func (s *DecisionSink) Publish(_ context.Context, event outbound.DecisionEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSinkClosed
	}
	if s.onPublish != nil {
		if err := s.onPublish(event); err != nil {
			return err
		}
	}
	s.events = append(s.events, event)
	return nil
}

// Close marks the sink as closed.
func (s *DecisionSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Events returns a copy of all published events.
func (s *DecisionSink) Events() []outbound.DecisionEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]outbound.DecisionEvent(nil), s.events...)
}
