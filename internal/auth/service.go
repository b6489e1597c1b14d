package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/storefront-labs/storefront/internal/profiles"
	pkgAuth "github.com/storefront-labs/storefront/pkg/auth"
	"github.com/storefront-labs/storefront/pkg/auth/session"
	"github.com/storefront-labs/storefront/pkg/config"
	"github.com/storefront-labs/storefront/pkg/db"
	"github.com/storefront-labs/storefront/pkg/db/models"
	"github.com/storefront-labs/storefront/pkg/enums"
	pkgerrors "github.com/storefront-labs/storefront/pkg/errors"
	"github.com/storefront-labs/storefront/pkg/logger"
	"github.com/storefront-labs/storefront/pkg/security"
)

const invalidCredentialsMessage = "invalid credentials"

// Service defines the behavior needed by the auth controllers.
type Service interface {
	Register(ctx context.Context, req RegisterRequest) (*SessionResponse, error)
	Login(ctx context.Context, req LoginRequest) (*SessionResponse, error)
	Logout(ctx context.Context, accessToken string) error
	Refresh(ctx context.Context, accessToken, refreshToken string) (*SessionResponse, error)
}

type profileRepository interface {
	Create(ctx context.Context, dto profiles.CreateProfileDTO) (*models.Profile, error)
	FindByEmail(ctx context.Context, email string) (*models.Profile, error)
	UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
	UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash string) error
}

type sessionManager interface {
	Generate(ctx context.Context, subjectID, accessID string) (string, error)
	Rotate(ctx context.Context, subjectID, oldAccessID, provided string) (string, string, error)
	Revoke(ctx context.Context, accessID string) error
}

// SubjectTeardown ends per-subject state when a session closes.
type SubjectTeardown interface {
	Teardown(ctx context.Context, subjectID string) error
}

// ServiceParams bundles the dependencies required to build an auth service.
type ServiceParams struct {
	Profiles       profileRepository
	SessionManager sessionManager
	JWTConfig      config.JWTConfig
	PasswordConfig config.PasswordConfig
	Teardown       []SubjectTeardown
	Logger         *logger.Logger
}

type service struct {
	profiles profileRepository
	session  sessionManager
	tokens   *pkgAuth.Issuer
	hasher   *security.Hasher
	teardown []SubjectTeardown
	logg     *logger.Logger
	now      func() time.Time
}

// NewService constructs the auth service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Profiles == nil {
		return nil, fmt.Errorf("profile repository is required")
	}
	if params.SessionManager == nil {
		return nil, fmt.Errorf("session manager is required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	tokens, err := pkgAuth.NewIssuer(params.JWTConfig)
	if err != nil {
		return nil, fmt.Errorf("token issuer: %w", err)
	}
	hasher, err := security.NewHasher(params.PasswordConfig)
	if err != nil {
		return nil, fmt.Errorf("password hasher: %w", err)
	}
	return &service{
		profiles: params.Profiles,
		session:  params.SessionManager,
		tokens:   tokens,
		hasher:   hasher,
		teardown: params.Teardown,
		logg:     logg,
		now:      time.Now,
	}, nil
}

// Register creates a customer profile and opens a session for it.
func (s *service) Register(ctx context.Context, req RegisterRequest) (*SessionResponse, error) {
	email := profiles.NormalizeEmail(req.Email)
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}
	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid password")
	}

	profile, err := s.profiles.Create(ctx, profiles.CreateProfileDTO{
		Email:        email,
		PasswordHash: hash,
		Role:         enums.RoleCustomer,
	})
	if err != nil {
		if db.IsUniqueViolation(err, profiles.EmailConstraint) || db.IsUniqueViolation(err, "profiles.email") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create profile")
	}

	return s.openSession(ctx, profile, s.now().UTC())
}

func (s *service) Login(ctx context.Context, req LoginRequest) (*SessionResponse, error) {
	profile, err := s.authenticate(ctx, req.Email, req.Password)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	if err := s.profiles.UpdateLastLogin(ctx, profile.ID, now); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record login")
	}
	profile.LastLoginAt = &now
	return s.openSession(ctx, profile, now)
}

// Logout revokes the session and tears down the subject's cart and wishlist cache.
// Expired access tokens are accepted so a stale client can still sign out.
func (s *service) Logout(ctx context.Context, accessToken string) error {
	claims, err := s.claims(accessToken)
	if err != nil {
		return err
	}
	if err := s.session.Revoke(ctx, claims.ID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "revoke session")
	}

	subjectID := claims.UserID.String()
	var teardownErr error
	for _, t := range s.teardown {
		teardownErr = multierr.Append(teardownErr, t.Teardown(ctx, subjectID))
	}
	if teardownErr != nil {
		s.logg.WarnErr(s.logg.WithSubject(ctx, subjectID), "subject teardown incomplete", teardownErr)
	}
	return nil
}

// Refresh rotates the refresh token tied to the presented access token's jti.
func (s *service) Refresh(ctx context.Context, accessToken, refreshToken string) (*SessionResponse, error) {
	claims, err := s.claims(accessToken)
	if err != nil {
		return nil, err
	}
	newAccessID, newRefresh, err := s.session.Rotate(ctx, claims.UserID.String(), claims.ID, refreshToken)
	if err != nil {
		if errors.Is(err, session.ErrInvalidRefreshToken) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid refresh token")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "rotate session")
	}
	token, err := s.tokens.Mint(s.now().UTC(), claims.UserID, newAccessID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint jwt")
	}
	return &SessionResponse{AccessToken: token, RefreshToken: newRefresh}, nil
}

func (s *service) openSession(ctx context.Context, profile *models.Profile, now time.Time) (*SessionResponse, error) {
	accessID := session.NewAccessID()
	token, err := s.tokens.Mint(now, profile.ID, accessID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint jwt")
	}
	refresh, err := s.session.Generate(ctx, profile.ID.String(), accessID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "store refresh token")
	}
	return &SessionResponse{
		AccessToken:  token,
		RefreshToken: refresh,
		Profile:      profiles.FromModel(profile),
	}, nil
}

func (s *service) claims(accessToken string) (*pkgAuth.Claims, error) {
	if strings.TrimSpace(accessToken) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	}
	claims, err := s.tokens.VerifyIgnoringExpiry(accessToken)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token")
	}
	return claims, nil
}

func (s *service) authenticate(ctx context.Context, email, password string) (*models.Profile, error) {
	input := strings.TrimSpace(email)
	if input == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}
	profile, err := s.profiles.FindByEmail(ctx, input)
	if err != nil {
		if errors.Is(err, profiles.ErrNotFound) {
			s.hasher.Burn(password)
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup profile")
	}

	valid, stale, err := s.hasher.Verify(password, profile.PasswordHash)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify password")
	}
	if !valid {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}
	if stale {
		s.upgradeHash(ctx, profile, password)
	}
	return profile, nil
}

// upgradeHash rehashes with the current cost settings. Failure keeps the old
// hash, which still verifies.
func (s *service) upgradeHash(ctx context.Context, profile *models.Profile, password string) {
	hash, err := s.hasher.Hash(password)
	if err == nil {
		err = s.profiles.UpdatePasswordHash(ctx, profile.ID, hash)
	}
	if err != nil {
		s.logg.WarnErr(s.logg.WithSubject(ctx, profile.ID.String()), "password rehash failed", err)
		return
	}
	profile.PasswordHash = hash
}
