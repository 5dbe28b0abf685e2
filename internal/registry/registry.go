// Package registry implements the process-wide ServiceRegistry: the first
// class substitute for a global lookup table keyed by torrent identity,
// letting collaborators that start before a torrent's info service does
// wait for it to register.
package registry

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// DefaultAwaitTimeout is the bound a caller waits for a service to appear
// before Await gives up.
const DefaultAwaitTimeout = 10 * time.Second

// Key identifies a registered service: the application tag plus the
// torrent id it serves.
type Key struct {
	ApplicationTag string
	TorrentID      int64
}

var (
	// ErrCollision is returned by Register when a service is already
	// registered under the same Key.
	ErrCollision = errors.New("registry: service already registered for this key")
	// ErrAwaitTimeout is returned by Await when no service registers
	// within the bound.
	ErrAwaitTimeout = errors.New("registry: timed out waiting for service")
)

// Registry is a process-wide map from Key to an arbitrary service handle
// (typically *infosvc.Service), with a bounded wait for late registration.
type Registry struct {
	mu       sync.Mutex
	services map[Key]any
	waiters  map[Key][]chan any
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{
		services: make(map[Key]any),
		waiters:  make(map[Key][]chan any),
	}
}

// Register publishes svc under key. Exactly one service may register per
// key; a second registration attempt is a fatal startup error surfaced as
// ErrCollision.
func (r *Registry) Register(key Key, svc any) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.services[key]; exists {
		return fmt.Errorf("%w: %+v", ErrCollision, key)
	}
	r.services[key] = svc

	for _, ch := range r.waiters[key] {
		ch <- svc
	}
	delete(r.waiters, key)

	return nil
}

// Lookup returns the service registered under key, if any, without
// waiting.
func (r *Registry) Lookup(key Key) (any, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	svc, ok := r.services[key]
	return svc, ok
}

// Await blocks until a service registers under key or timeout elapses,
// whichever comes first. A zero timeout uses DefaultAwaitTimeout.
func (r *Registry) Await(key Key, timeout time.Duration) (any, error) {
	if timeout <= 0 {
		timeout = DefaultAwaitTimeout
	}

	r.mu.Lock()
	if svc, ok := r.services[key]; ok {
		r.mu.Unlock()
		return svc, nil
	}
	ch := make(chan any, 1)
	r.waiters[key] = append(r.waiters[key], ch)
	r.mu.Unlock()

	select {
	case svc := <-ch:
		return svc, nil
	case <-time.After(timeout):
		return nil, fmt.Errorf("%w: %+v", ErrAwaitTimeout, key)
	}
}

// Deregister removes the service registered under key, if present. Used
// for orderly shutdown.
func (r *Registry) Deregister(key Key) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.services, key)
}
