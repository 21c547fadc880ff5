package tenants

import (
	"context"
	"errors"
)

var (
	ErrNotFound = errors.New("tenant not found")
	ErrExists   = errors.New("tenant already registered")
)

// Registry stores the gateway's view of registered realms. The identity
// provider itself is not managed here; registration records which realms
// the gateway serves.
type Registry interface {
	Register(ctx context.Context, t Tenant) (Tenant, error)
	Get(ctx context.Context, id string) (Tenant, error)
	List(ctx context.Context) ([]Tenant, error)
	UpdateDescription(ctx context.Context, name, description string) error
	Delete(ctx context.Context, name string) error
}
