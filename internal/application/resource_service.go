package application

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/resbook/service-booking/internal/domain/principal"
	resourceDomain "github.com/resbook/service-booking/internal/domain/resource"
	"github.com/resbook/service-booking/pkg/domain"
)

// ResourceRequest is the request DTO for creating or updating a resource.
type ResourceRequest struct {
	Name        string  `json:"name" binding:"required,notblank,max=100"`
	Description *string `json:"description" binding:"omitempty,max=1000"`
}

// ResourceDTO is the API response representation of a resource.
type ResourceDTO struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	Active      bool      `json:"active"`
	Version     int64     `json:"version"`
	CreatedAt   time.Time `json:"created_at"`
	CreatedBy   string    `json:"created_by"`
	UpdatedAt   time.Time `json:"updated_at"`
	UpdatedBy   string    `json:"updated_by"`
}

// ResourceService implements use cases for the bookable resource catalogue.
type ResourceService struct {
	repo   resourceDomain.ResourceRepository
	logger *zap.Logger
}

// NewResourceService creates a new ResourceService.
func NewResourceService(repo resourceDomain.ResourceRepository, logger *zap.Logger) *ResourceService {
	return &ResourceService{repo: repo, logger: logger}
}

// Create adds an active resource.
func (s *ResourceService) Create(ctx context.Context, p principal.Principal, req ResourceRequest) (*ResourceDTO, error) {
	if err := requireAdmin(p); err != nil {
		return nil, err
	}

	res, err := resourceDomain.NewResource(req.Name, req.Description, p.Email)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, res); err != nil {
		return nil, err
	}

	s.logger.Info("resource created",
		zap.String("resource_id", res.ID().String()),
		zap.String("created_by", p.Email),
	)
	result := toResourceDTO(res)
	return &result, nil
}

// Update replaces a resource's name and description.
func (s *ResourceService) Update(ctx context.Context, p principal.Principal, id uuid.UUID, req ResourceRequest) (*ResourceDTO, error) {
	if err := requireAdmin(p); err != nil {
		return nil, err
	}

	res, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := res.Update(req.Name, req.Description, p.Email); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, res); err != nil {
		return nil, err
	}

	result := toResourceDTO(res)
	return &result, nil
}

// Activate makes a resource bookable again. Activating an active resource is a no-op.
func (s *ResourceService) Activate(ctx context.Context, p principal.Principal, id uuid.UUID) (*ResourceDTO, error) {
	return s.toggle(ctx, p, id, (*resourceDomain.Resource).Activate)
}

// Deactivate stops new drafts on a resource. Existing bookings are untouched.
func (s *ResourceService) Deactivate(ctx context.Context, p principal.Principal, id uuid.UUID) (*ResourceDTO, error) {
	return s.toggle(ctx, p, id, (*resourceDomain.Resource).Deactivate)
}

func (s *ResourceService) toggle(
	ctx context.Context,
	p principal.Principal,
	id uuid.UUID,
	apply func(*resourceDomain.Resource, string) bool,
) (*ResourceDTO, error) {
	if err := requireAdmin(p); err != nil {
		return nil, err
	}

	res, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if apply(res, p.Email) {
		if err := s.repo.Update(ctx, res); err != nil {
			return nil, err
		}
		s.logger.Info("resource availability changed",
			zap.String("resource_id", id.String()),
			zap.Bool("active", res.IsActive()),
			zap.String("updated_by", p.Email),
		)
	}

	result := toResourceDTO(res)
	return &result, nil
}

// Get returns a single resource.
func (s *ResourceService) Get(ctx context.Context, id uuid.UUID) (*ResourceDTO, error) {
	res, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	result := toResourceDTO(res)
	return &result, nil
}

// List returns all resources, or only those matching active when it is set.
func (s *ResourceService) List(ctx context.Context, active *bool) ([]ResourceDTO, error) {
	var (
		resources []*resourceDomain.Resource
		err       error
	)
	if active != nil {
		resources, err = s.repo.FindByActive(ctx, *active)
	} else {
		resources, err = s.repo.FindAll(ctx)
	}
	if err != nil {
		return nil, err
	}

	dtos := make([]ResourceDTO, len(resources))
	for i, r := range resources {
		dtos[i] = toResourceDTO(r)
	}
	return dtos, nil
}

func requireAdmin(p principal.Principal) error {
	if !p.IsAdmin() {
		return domain.NewForbiddenError("admin role required")
	}
	return nil
}

func toResourceDTO(r *resourceDomain.Resource) ResourceDTO {
	return ResourceDTO{
		ID:          r.ID(),
		Name:        r.Name(),
		Description: r.Description(),
		Active:      r.IsActive(),
		Version:     r.Version(),
		CreatedAt:   r.CreatedAt(),
		CreatedBy:   r.CreatedBy(),
		UpdatedAt:   r.UpdatedAt(),
		UpdatedBy:   r.UpdatedBy(),
	}
}
