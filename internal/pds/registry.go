package pds

import (
	"context"
	"fmt"
	"sort"
)

// Description is shown to end users choosing a store.
type Description struct {
	Name string `json:"name"`
	Link string `json:"link,omitempty"`
	Img  string `json:"img,omitempty"`
}

// Provider creates backends for one kind of store.
type Provider interface {
	Name() string
	Description() Description
	// Open returns a backend authorized by the account's stored credentials.
	Open(ctx context.Context, credentials []byte) (Backend, error)
}

// Registry maps provider names to providers.
type Registry struct {
	providers map[string]Provider
}

// NewRegistry creates a registry holding providers.
func NewRegistry(providers ...Provider) (*Registry, error) {
	r := &Registry{providers: make(map[string]Provider)}
	for _, p := range providers {
		if err := r.Register(p); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a provider. Names are unique.
func (r *Registry) Register(p Provider) error {
	if _, exists := r.providers[p.Name()]; exists {
		return fmt.Errorf("pds provider %q already registered", p.Name())
	}
	r.providers[p.Name()] = p
	return nil
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.providers[name]
	return ok
}

// Get opens the named provider's backend wrapped in an FS.
func (r *Registry) Get(ctx context.Context, name string, credentials []byte) (*FS, error) {
	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("unknown pds provider %q", name)
	}
	backend, err := p.Open(ctx, credentials)
	if err != nil {
		return nil, fmt.Errorf("failed to open pds provider %q: %w", name, err)
	}
	return NewFS(backend), nil
}

// Provider returns the named provider.
func (r *Registry) Provider(name string) (Provider, bool) {
	p, ok := r.providers[name]
	return p, ok
}

// Providers lists the descriptions of all providers sorted by name.
func (r *Registry) Providers() []Description {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)

	descriptions := make([]Description, 0, len(names))
	for _, name := range names {
		descriptions = append(descriptions, r.providers[name].Description())
	}
	return descriptions
}
