package resource

import (
	"context"

	"github.com/google/uuid"
)

// ResourceRepository defines persistence operations for resources.
type ResourceRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Resource, error)
	// FindByIDForUpdate loads the row under an exclusive lock held until
	// the surrounding transaction ends.
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*Resource, error)
	FindByActive(ctx context.Context, active bool) ([]*Resource, error)
	FindAll(ctx context.Context) ([]*Resource, error)
	Save(ctx context.Context, resource *Resource) error
	Update(ctx context.Context, resource *Resource) error
}
