// Package viewstore defines the capability consumed by the link: named
// views exposing callable methods and event streams, behind a one-shot
// readiness gate. The in-memory Store is the reference implementation;
// grpcview provides a remote one.
package viewstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	eventbus "github.com/hanpama/viewlink/internal/eventbus"
	events "github.com/hanpama/viewlink/internal/events"
)

// Method is a callable exposed by a view.
type Method func(ctx context.Context, args map[string]any) (any, error)

// Handler receives event payloads for a bound listener.
type Handler func(payload any)

// Interface is the view-store capability the link resolves against.
type Interface interface {
	// Call invokes a view method with the given arguments.
	Call(ctx context.Context, view, method string, args map[string]any) (any, error)

	// On registers h for events named event on the given view. The
	// returned function removes the listener and is idempotent.
	// Multiple listeners per (view, event) are independent.
	On(view, event string, h Handler) (off func())

	// OnReady runs fn once the store is ready to serve. If the store
	// is already ready, fn runs immediately. The gate fires at most
	// once but replays to late registrants.
	OnReady(fn func())
}

// Store is an in-memory view store.
type Store struct {
	mu        sync.Mutex
	views     map[string]map[string]Method
	listeners map[string][]listener // key: view + "\x00" + event
	gate      ReadyGate
}

type listener struct {
	id string
	h  Handler
}

// NewStore creates an empty, not-yet-ready store.
func NewStore() *Store {
	return &Store{
		views:     make(map[string]map[string]Method),
		listeners: make(map[string][]listener),
	}
}

// RegisterView adds or replaces a view's method table.
func (s *Store) RegisterView(name string, methods map[string]Method) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.views[name] = methods
}

// Call invokes a registered view method.
func (s *Store) Call(ctx context.Context, view, method string, args map[string]any) (any, error) {
	s.mu.Lock()
	methods, ok := s.views[view]
	var fn Method
	if ok {
		fn = methods[method]
	}
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("viewstore: unknown view %q", view)
	}
	if fn == nil {
		return nil, fmt.Errorf("viewstore: view %q has no method %q", view, method)
	}

	start := time.Now()
	eventbus.Publish(ctx, events.ViewCallStart{View: view, Method: method})
	data, err := fn(ctx, args)
	eventbus.Publish(ctx, events.ViewCallFinish{View: view, Method: method, Err: err, Duration: time.Since(start)})
	return data, err
}

// On registers an event listener.
func (s *Store) On(view, event string, h Handler) (off func()) {
	key := eventKey(view, event)
	id := uuid.NewString()
	s.mu.Lock()
	s.listeners[key] = append(s.listeners[key], listener{id: id, h: h})
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		ls := s.listeners[key]
		for i, l := range ls {
			if l.id == id {
				ls = append(ls[:i], ls[i+1:]...)
				break
			}
		}
		if len(ls) == 0 {
			delete(s.listeners, key)
		} else {
			s.listeners[key] = ls
		}
	}
}

// Emit delivers payload to every listener bound to (view, event).
func (s *Store) Emit(view, event string, payload any) {
	key := eventKey(view, event)
	s.mu.Lock()
	ls := append([]listener(nil), s.listeners[key]...)
	s.mu.Unlock()
	for _, l := range ls {
		l.h(payload)
	}
}

// ListenerCount reports how many listeners are bound to (view, event).
func (s *Store) ListenerCount(view, event string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.listeners[eventKey(view, event)])
}

// OnReady implements the readiness gate.
func (s *Store) OnReady(fn func()) { s.gate.OnReady(fn) }

// SetReady fires the readiness gate. Waiters registered before the
// gate run now, in registration order; later ones run immediately in
// OnReady. Subsequent calls are no-ops.
func (s *Store) SetReady() { s.gate.Fire() }

func eventKey(view, event string) string { return view + "\x00" + event }
