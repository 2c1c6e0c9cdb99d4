package personality

import (
	"log"
	"math/rand"
	"sync"

	tyerrors "tyrant/src/errors"
)

// Registry maps personality ids to packs, preserving registration order.
// It is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	packs map[string]*Pack
	order []string
}

type registryConfig struct {
	empty bool
	rng   *rand.Rand
}

// Option configures NewRegistry
type Option func(*registryConfig)

// Empty skips seeding the built-in packs
func Empty() Option {
	return func(c *registryConfig) { c.empty = true }
}

// WithRand sets the random source handed to built-in transformers
func WithRand(rng *rand.Rand) Option {
	return func(c *registryConfig) { c.rng = rng }
}

// NewRegistry creates a registry seeded with the built-in packs unless
// Empty is given
func NewRegistry(opts ...Option) *Registry {
	var cfg registryConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	r := &Registry{packs: make(map[string]*Pack)}
	if !cfg.empty {
		for _, p := range Builtins(cfg.rng) {
			r.packs[p.ID] = p
			r.order = append(r.order, p.ID)
		}
	}
	return r
}

var (
	defaultRegistry     *Registry
	defaultRegistryOnce sync.Once
)

// Default returns the process-wide registry, seeded on first use. Library code
// takes a *Registry explicitly; only composition roots should call this.
func Default() *Registry {
	defaultRegistryOnce.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// Register adds pack. A colliding id fails with *errors.DuplicateIDError and
// leaves the stored pack untouched.
func (r *Registry) Register(pack *Pack) error {
	if pack == nil || pack.ID == "" {
		return &tyerrors.ValidationError{Field: "id", Message: "personality id is required"}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.packs[pack.ID]; exists {
		return &tyerrors.DuplicateIDError{ID: pack.ID}
	}
	r.packs[pack.ID] = pack
	r.order = append(r.order, pack.ID)

	log.Printf("[Registry] Registered personality %s", pack.ID)
	return nil
}

// Unregister removes id, reporting whether it was present
func (r *Registry) Unregister(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.packs[id]; !exists {
		return false
	}
	delete(r.packs, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// Get returns the pack for id, if any
func (r *Registry) Get(id string) (*Pack, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.packs[id]
	return p, ok
}

// Lookup is Get for required paths: an unknown id is a
// *errors.PersonalityNotFoundError
func (r *Registry) Lookup(id string) (*Pack, error) {
	p, ok := r.Get(id)
	if !ok {
		return nil, &tyerrors.PersonalityNotFoundError{ID: id}
	}
	return p, nil
}

// List returns every pack in registration order
func (r *Registry) List() []*Pack {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := make([]*Pack, 0, len(r.order))
	for _, id := range r.order {
		list = append(list, r.packs[id])
	}
	return list
}

// IDs returns every registered id in registration order
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string{}, r.order...)
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
