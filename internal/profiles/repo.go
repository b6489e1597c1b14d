package profiles

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/storefront-labs/storefront/pkg/db/models"
	"github.com/storefront-labs/storefront/pkg/enums"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200

	// EmailConstraint is the unique index on profile emails.
	EmailConstraint = "profiles_email_key"
)

// ErrNotFound is returned when no profile matches.
var ErrNotFound = errors.New("profile not found")

// Repository exposes profile persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a profiles repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new profile and returns the persisted model.
func (r *Repository) Create(ctx context.Context, dto CreateProfileDTO) (*models.Profile, error) {
	profile := dto.ToModel()
	if err := r.db.WithContext(ctx).Create(profile).Error; err != nil {
		return nil, err
	}
	return profile, nil
}

// FindByEmail retrieves the profile matching the provided email.
func (r *Repository) FindByEmail(ctx context.Context, email string) (*models.Profile, error) {
	var profile models.Profile
	err := r.db.WithContext(ctx).Where("email = ?", NormalizeEmail(email)).First(&profile).Error
	if err != nil {
		return nil, translate(err)
	}
	return &profile, nil
}

// FindByID loads a profile by its UUID.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Profile, error) {
	var profile models.Profile
	if err := r.db.WithContext(ctx).First(&profile, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &profile, nil
}

// GetRole reads only the role column for the subject. It is called on every
// guarded request, so it never goes through a cache.
func (r *Repository) GetRole(ctx context.Context, subjectID string) (enums.Role, error) {
	id, err := uuid.Parse(subjectID)
	if err != nil {
		return "", ErrNotFound
	}
	var role string
	err = r.db.WithContext(ctx).
		Model(&models.Profile{}).
		Select("role").
		Where("id = ?", id).
		Limit(1).
		Scan(&role).Error
	if err != nil {
		return "", err
	}
	if role == "" {
		return "", ErrNotFound
	}
	return enums.Role(role), nil
}

// List pages through profiles ordered by creation time.
func (r *Repository) List(ctx context.Context, params ListParams) ([]models.Profile, error) {
	limit := params.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	offset := params.Offset
	if offset < 0 {
		offset = 0
	}

	query := r.db.WithContext(ctx).Model(&models.Profile{})
	if params.Role != nil {
		query = query.Where("role = ?", *params.Role)
	}

	var rows []models.Profile
	if err := query.Order("created_at ASC").Order("id ASC").Limit(limit).Offset(offset).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// UpdateRole overwrites the profile's role.
func (r *Repository) UpdateRole(ctx context.Context, id uuid.UUID, role enums.Role) error {
	res := r.db.WithContext(ctx).
		Model(&models.Profile{}).
		Where("id = ?", id).
		Updates(map[string]any{"role": role, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateLastLogin refreshes the profile's last_login_at timestamp.
func (r *Repository) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.Profile{}).
		Where("id = ?", id).
		UpdateColumn("last_login_at", at).Error
}

// UpdatePasswordHash replaces the stored password hash.
func (r *Repository) UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash string) error {
	res := r.db.WithContext(ctx).
		Model(&models.Profile{}).
		Where("id = ?", id).
		Updates(map[string]any{"password_hash": hash, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
