package feed

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// State of a subscriber session.
type State int

const (
	StateIdle State = iota
	StateStreaming
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStreaming:
		return "streaming"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var (
	// ErrSessionClosed is returned when Run is called on a finished session.
	ErrSessionClosed = errors.New("feed: session closed")
	// ErrBrokerClosed is returned when the broker no longer accepts subscribers.
	ErrBrokerClosed = errors.New("feed: broker closed")
)

// Session drives one subscriber through Idle -> Streaming -> Closed.
type Session struct {
	broker  *Broker
	initial func() ([]byte, error)
	send    func([]byte) error

	mu    sync.Mutex
	state State
}

func newSession(broker *Broker, initial func() ([]byte, error), send func([]byte) error) *Session {
	return &Session{broker: broker, initial: initial, send: send}
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) transition(from, to State) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != from {
		return false
	}
	s.state = to
	return true
}

func (s *Session) close() {
	s.mu.Lock()
	s.state = StateClosed
	s.mu.Unlock()
}

// Run streams snapshots until ctx ends, the broker closes, or a push fails.
// A fresh snapshot is pushed immediately on start. Run always ends Closed.
func (s *Session) Run(ctx context.Context) error {
	if !s.transition(StateIdle, StateStreaming) {
		return ErrSessionClosed
	}
	defer s.close()

	ch := s.broker.Subscribe()
	if ch == nil {
		return ErrBrokerClosed
	}
	defer s.broker.Unsubscribe(ch)

	payload, err := s.initial()
	if err != nil {
		return fmt.Errorf("feed: initial snapshot: %w", err)
	}
	if err := s.send(payload); err != nil {
		return fmt.Errorf("feed: push: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case payload, ok := <-ch:
			if !ok {
				return nil
			}
			if err := s.send(payload); err != nil {
				return fmt.Errorf("feed: push: %w", err)
			}
		}
	}
}
