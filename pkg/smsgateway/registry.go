package smsgateway

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"
)

// Credentials configure one backend instance. Keys are backend specific.
type Credentials map[string]string

// Get returns the trimmed value of key
func (c Credentials) Get(key string) string {
	return strings.TrimSpace(c[key])
}

// Require returns the values of keys in order or an error naming the first missing one
func (c Credentials) Require(backend string, keys ...string) ([]string, error) {
	values := make([]string, len(keys))
	for i, k := range keys {
		v := c.Get(k)
		if v == "" {
			return nil, fmt.Errorf("%s: missing credential %q", backend, k)
		}
		values[i] = v
	}
	return values, nil
}

// Factory builds a backend from explicit credentials
type Factory func(creds Credentials) (Backend, error)

// Registry maps backend names to factories. Backends are built per request
// from the credentials passed in, so tenants never share mutable state.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds or replaces the factory for name
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[strings.ToLower(name)] = f
}

// Has reports whether name is registered
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[strings.ToLower(name)]
	return ok
}

// Build constructs the named backend
func (r *Registry) Build(name string, creds Credentials) (Backend, error) {
	r.mu.RLock()
	f, ok := r.factories[strings.ToLower(name)]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, name)
	}
	if creds == nil {
		creds = Credentials{}
	}
	return f(creds)
}

// Names lists the registered backends in order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for n := range r.factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry registers every built-in backend. HTTP backends share one
// client whose timeout matches the adapter's.
func DefaultRegistry(demo DemoConfig, timeout time.Duration) *Registry {
	client := &http.Client{Timeout: timeout}

	r := NewRegistry()
	r.Register(BackendDemo, func(creds Credentials) (Backend, error) {
		return NewDemoBackendFromCredentials(demo, creds)
	})
	r.Register(BackendTwilio, func(creds Credentials) (Backend, error) {
		return NewTwilioBackend(creds)
	})
	r.Register(BackendMSG91, func(creds Credentials) (Backend, error) {
		return NewMSG91Backend(creds, client)
	})
	r.Register(BackendTextLocal, func(creds Credentials) (Backend, error) {
		return NewTextLocalBackend(creds, client)
	})
	return r
}
