package resource

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/resbook/service-booking/pkg/domain"
)

const (
	MaxNameLength        = 100
	MaxDescriptionLength = 1000

	CodeInvalidName        = "INVALID_RESOURCE_NAME"
	CodeInvalidDescription = "INVALID_RESOURCE_DESCRIPTION"
	CodeResourceInactive   = "RESOURCE_INACTIVE"
)

// Resource is the aggregate root for a bookable resource.
type Resource struct {
	id          uuid.UUID
	name        string
	description *string
	active      bool
	version     int64
	createdAt   time.Time
	createdBy   string
	updatedAt   time.Time
	updatedBy   string
}

// NewResource creates an active resource with validated fields.
func NewResource(name string, description *string, createdBy string) (*Resource, error) {
	n, err := NormalizeName(name)
	if err != nil {
		return nil, err
	}
	d, err := NormalizeDescription(description)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	return &Resource{
		id:          uuid.New(),
		name:        n,
		description: d,
		active:      true,
		version:     1,
		createdAt:   now,
		createdBy:   createdBy,
		updatedAt:   now,
		updatedBy:   createdBy,
	}, nil
}

// Reconstruct rebuilds a Resource from persistence data (no validation).
func Reconstruct(
	id uuid.UUID,
	name string,
	description *string,
	active bool,
	version int64,
	createdAt time.Time,
	createdBy string,
	updatedAt time.Time,
	updatedBy string,
) *Resource {
	return &Resource{
		id:          id,
		name:        name,
		description: description,
		active:      active,
		version:     version,
		createdAt:   createdAt,
		createdBy:   createdBy,
		updatedAt:   updatedAt,
		updatedBy:   updatedBy,
	}
}

func (r *Resource) ID() uuid.UUID        { return r.id }
func (r *Resource) Name() string         { return r.name }
func (r *Resource) Description() *string { return r.description }
func (r *Resource) IsActive() bool       { return r.active }
func (r *Resource) Version() int64       { return r.version }
func (r *Resource) CreatedAt() time.Time { return r.createdAt }
func (r *Resource) CreatedBy() string    { return r.createdBy }
func (r *Resource) UpdatedAt() time.Time { return r.updatedAt }
func (r *Resource) UpdatedBy() string    { return r.updatedBy }

// Update replaces name and description.
func (r *Resource) Update(name string, description *string, actor string) error {
	n, err := NormalizeName(name)
	if err != nil {
		return err
	}
	d, err := NormalizeDescription(description)
	if err != nil {
		return err
	}
	r.name = n
	r.description = d
	r.touch(actor)
	return nil
}

// Activate makes the resource bookable. Returns false if it already was.
func (r *Resource) Activate(actor string) bool {
	if r.active {
		return false
	}
	r.active = true
	r.touch(actor)
	return true
}

// Deactivate stops new bookings. Returns false if it already was inactive.
func (r *Resource) Deactivate(actor string) bool {
	if !r.active {
		return false
	}
	r.active = false
	r.touch(actor)
	return true
}

func (r *Resource) touch(actor string) {
	r.version++
	r.updatedAt = time.Now().UTC()
	r.updatedBy = actor
}

// NormalizeName trims name and checks its length.
func NormalizeName(name string) (string, error) {
	n := strings.TrimSpace(name)
	if n == "" {
		return "", domain.NewValidationErrorWithCode(CodeInvalidName, "Resource name must not be blank")
	}
	if utf8.RuneCountInString(n) > MaxNameLength {
		return "", domain.NewValidationErrorWithCode(CodeInvalidName,
			fmt.Sprintf("Resource name must not be longer than %d", MaxNameLength))
	}
	return n, nil
}

// NormalizeDescription trims description; blank becomes nil.
func NormalizeDescription(description *string) (*string, error) {
	if description == nil {
		return nil, nil
	}
	d := strings.TrimSpace(*description)
	if utf8.RuneCountInString(d) > MaxDescriptionLength {
		return nil, domain.NewValidationErrorWithCode(CodeInvalidDescription,
			fmt.Sprintf("Resource description must not be longer than %d", MaxDescriptionLength))
	}
	if d == "" {
		return nil, nil
	}
	return &d, nil
}

// NewInactiveError reports a booking attempt against an inactive resource.
func NewInactiveError(id uuid.UUID) *domain.DomainError {
	return domain.NewValidationErrorWithCode(CodeResourceInactive, fmt.Sprintf("Resource is inactive: %s", id)).
		WithDetail("resource_id", id.String())
}

// NewNotFoundError reports a missing resource.
func NewNotFoundError(id uuid.UUID) *domain.DomainError {
	return domain.NewNotFoundError("Resource", id.String())
}
