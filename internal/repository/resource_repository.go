package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	resourceDomain "github.com/resbook/service-booking/internal/domain/resource"
	"github.com/resbook/service-booking/pkg/domain"
)

// ResourceModel is the GORM model for the resources table.
type ResourceModel struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name        string    `gorm:"type:varchar(100);not null"`
	Description *string   `gorm:"type:varchar(1000)"`
	Active      bool      `gorm:"not null;default:true;index"`
	Version     int64     `gorm:"not null;default:1"`
	CreatedAt   time.Time `gorm:"type:timestamptz;not null;default:now()"`
	CreatedBy   string    `gorm:"type:varchar(255);not null"`
	UpdatedAt   time.Time `gorm:"type:timestamptz;not null;default:now()"`
	UpdatedBy   string    `gorm:"type:varchar(255);not null"`
}

func (ResourceModel) TableName() string { return "resources" }

// GormResourceRepository implements ResourceRepository using GORM.
type GormResourceRepository struct {
	db *gorm.DB
}

func NewGormResourceRepository(db *gorm.DB) *GormResourceRepository {
	return &GormResourceRepository{db: db}
}

func (r *GormResourceRepository) FindByID(ctx context.Context, id uuid.UUID) (*resourceDomain.Resource, error) {
	return r.findOne(conn(ctx, r.db), id)
}

// FindByIDForUpdate takes SELECT ... FOR UPDATE on the resource row. Two
// transactions reserving the same resource queue up here.
func (r *GormResourceRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*resourceDomain.Resource, error) {
	return r.findOne(conn(ctx, r.db).Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (r *GormResourceRepository) findOne(db *gorm.DB, id uuid.UUID) (*resourceDomain.Resource, error) {
	var model ResourceModel
	if err := db.Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, resourceDomain.NewNotFoundError(id)
		}
		return nil, fmt.Errorf("failed to find resource: %w", err)
	}
	return toResourceDomain(&model), nil
}

func (r *GormResourceRepository) FindByActive(ctx context.Context, active bool) ([]*resourceDomain.Resource, error) {
	var models []ResourceModel
	if err := conn(ctx, r.db).
		Where("active = ?", active).
		Order("name ASC").
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list resources: %w", err)
	}
	return toResourceDomains(models), nil
}

func (r *GormResourceRepository) FindAll(ctx context.Context) ([]*resourceDomain.Resource, error) {
	var models []ResourceModel
	if err := conn(ctx, r.db).Order("name ASC").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list resources: %w", err)
	}
	return toResourceDomains(models), nil
}

func (r *GormResourceRepository) Save(ctx context.Context, res *resourceDomain.Resource) error {
	if err := conn(ctx, r.db).Create(toResourceModel(res)).Error; err != nil {
		return fmt.Errorf("failed to save resource: %w", err)
	}
	return nil
}

func (r *GormResourceRepository) Update(ctx context.Context, res *resourceDomain.Resource) error {
	model := toResourceModel(res)
	previousVersion := res.Version() - 1

	result := conn(ctx, r.db).
		Model(&ResourceModel{}).
		Where("id = ? AND version = ?", model.ID, previousVersion).
		Updates(map[string]interface{}{
			"name":        model.Name,
			"description": model.Description,
			"active":      model.Active,
			"version":     model.Version,
			"updated_at":  model.UpdatedAt,
			"updated_by":  model.UpdatedBy,
		})

	if result.Error != nil {
		return fmt.Errorf("failed to update resource: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.NewConflictError("resource was modified by another transaction").
			WithDetail("resource_id", model.ID.String())
	}
	return nil
}

// --- Conversions ---

func toResourceModel(r *resourceDomain.Resource) *ResourceModel {
	return &ResourceModel{
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

func toResourceDomain(m *ResourceModel) *resourceDomain.Resource {
	return resourceDomain.Reconstruct(
		m.ID,
		m.Name, m.Description,
		m.Active,
		m.Version,
		m.CreatedAt, m.CreatedBy,
		m.UpdatedAt, m.UpdatedBy,
	)
}

func toResourceDomains(models []ResourceModel) []*resourceDomain.Resource {
	out := make([]*resourceDomain.Resource, len(models))
	for i := range models {
		out[i] = toResourceDomain(&models[i])
	}
	return out
}
