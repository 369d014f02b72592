package adserver

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"
)

// ErrNotReady is returned by Reconcile while the ad server is still
// processing the resource. The poller keeps retrying until another
// outcome arrives.
var ErrNotReady = errors.New("adserver: resource not ready") //nolint:gochecknoglobals // sentinel error

// ErrUnknownAdServer is returned when a tenant's ad server type is not registered.
var ErrUnknownAdServer = errors.New("adserver: unknown ad server type") //nolint:gochecknoglobals // sentinel error

// Adapter talks to one ad server product on behalf of a tenant.
type Adapter interface {
	// CreateOrder provisions the external order backing a media buy and
	// returns the ad server's order id.
	CreateOrder(ctx context.Context, req OrderRequest) (string, error)

	// Reconcile checks whether the external resource has reached a
	// usable state. It returns nil once the resource is ready,
	// ErrNotReady while the ad server is still processing, and any
	// other error for a terminal rejection.
	Reconcile(ctx context.Context, resourceID string) error
}

// OrderRequest carries the fields every supported ad server needs to
// create an order.
type OrderRequest struct {
	OrderName    string
	AdvertiserID string
	BudgetMicros int64
	Currency     string
}

// AdapterFactory builds an adapter from tenant settings.
type AdapterFactory func(settings map[string]any) (Adapter, error)

// Registry maps ad server type names to adapter factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]AdapterFactory
}

func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]AdapterFactory),
	}
}

// Register adds a factory for an ad server type.
func (r *Registry) Register(adServerType string, factory AdapterFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[adServerType] = factory
}

// Create instantiates an adapter for the given ad server type.
func (r *Registry) Create(adServerType string, settings map[string]any) (Adapter, error) {
	r.mu.RLock()
	factory, ok := r.factories[adServerType]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("adserver.Registry.Create(%q): %w", adServerType, ErrUnknownAdServer)
	}

	adapter, err := factory(settings)
	if err != nil {
		return nil, fmt.Errorf("adserver.Registry.Create(%q): %w", adServerType, err)
	}

	return adapter, nil
}

// Available returns registered ad server type names in sorted order.
func (r *Registry) Available() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := slices.Collect(func(yield func(string) bool) {
		for name := range r.factories {
			if !yield(name) {
				return
			}
		}
	})
	sort.Strings(names)

	return names
}
