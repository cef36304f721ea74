// Package identity holds the process-wide connected identity.
//
// Every switch bumps a generation counter. Components stamp the data they
// derive with the generation it belongs to and drop it when the generation
// moves on, so state from one identity is never merged into another's.
package identity

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Identity is a snapshot of the connected account.
type Identity struct {
	Address    common.Address
	Generation uint64
}

// Connected reports whether an account is connected.
func (i Identity) Connected() bool {
	return i.Address != (common.Address{})
}

// Session is safe for concurrent use.
type Session struct {
	mu        sync.RWMutex
	current   Identity
	listeners []func(prev, next Identity)
}

func NewSession() *Session {
	return &Session{}
}

// Current returns the identity at the time of the call.
func (s *Session) Current() Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Switch connects addr, replacing any previous identity. Switching to the
// already connected address is a no-op.
func (s *Session) Switch(addr common.Address) Identity {
	s.mu.Lock()
	if s.current.Address == addr {
		cur := s.current
		s.mu.Unlock()
		return cur
	}
	prev := s.current
	s.current = Identity{Address: addr, Generation: prev.Generation + 1}
	next := s.current
	listeners := append([]func(prev, next Identity){}, s.listeners...)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(prev, next)
	}
	return next
}

// Disconnect clears the identity.
func (s *Session) Disconnect() Identity {
	return s.Switch(common.Address{})
}

// OnChange registers fn to run synchronously after every identity switch.
func (s *Session) OnChange(fn func(prev, next Identity)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}
