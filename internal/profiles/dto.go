package profiles

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/storefront-labs/storefront/pkg/db/models"
	"github.com/storefront-labs/storefront/pkg/enums"
)

// ProfileDTO is the transport shape that omits credentials.
type ProfileDTO struct {
	ID          uuid.UUID  `json:"id"`
	Email       string     `json:"email"`
	Role        enums.Role `json:"role"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// CreateProfileDTO holds what the repository needs to persist a new profile.
type CreateProfileDTO struct {
	Email        string
	PasswordHash string
	Role         enums.Role
}

// ListParams pages through profiles, optionally filtered by role.
type ListParams struct {
	Role   *enums.Role
	Limit  int
	Offset int
}

func FromModel(p *models.Profile) *ProfileDTO {
	if p == nil {
		return nil
	}
	return &ProfileDTO{
		ID:          p.ID,
		Email:       p.Email,
		Role:        p.Role,
		LastLoginAt: p.LastLoginAt,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func (c CreateProfileDTO) ToModel() *models.Profile {
	role := c.Role
	if role == "" {
		role = enums.RoleCustomer
	}
	return &models.Profile{
		Email:        NormalizeEmail(c.Email),
		PasswordHash: c.PasswordHash,
		Role:         role,
	}
}

// NormalizeEmail lowercases and trims an address for lookups and uniqueness.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
