// Package service provides the authentication and book catalog business
// logic, delegating persistence to repository interfaces.
package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Akash-kotagiri/book-haven/internal/apperr"
	"github.com/Akash-kotagiri/book-haven/internal/auth"
	"github.com/Akash-kotagiri/book-haven/internal/media"
	"github.com/Akash-kotagiri/book-haven/internal/metrics"
	"github.com/Akash-kotagiri/book-haven/internal/models"
	"github.com/Akash-kotagiri/book-haven/internal/validation"
)

// ErrInvalidCredentials is returned by Login both for an unknown email and
// for a wrong password.
var ErrInvalidCredentials = apperr.Auth("Invalid credentials")

// UserRepository defines the persistence operations
// required by the authentication service.
type UserRepository interface {
	// EmailExists returns true if a user with the given email exists.
	EmailExists(ctx context.Context, email string) (bool, error)
	// CreateUser inserts a new user. Unique violations surface as apperr conflicts.
	CreateUser(ctx context.Context, u *models.User) error
	// GetUserByID returns the user or an apperr not found error.
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	// GetUserByEmail returns the user or an apperr not found error.
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	// UpdateUser persists the profile fields of u.
	UpdateUser(ctx context.Context, u *models.User) error
}

// EventRecorder counts domain events.
type EventRecorder interface {
	Inc(event string)
}

type nopRecorder struct{}

func (nopRecorder) Inc(string) {}

// AuthService registers and authenticates users and manages their profile.
type AuthService struct {
	repo     UserRepository
	tokens   *auth.TokenManager
	hasher   *auth.PasswordHasher
	uploader media.Uploader
	validate *validation.Validator
	events   EventRecorder
	log      *zap.Logger
}

// NewAuthService constructs an AuthService. uploader may be nil, in which
// case profile picture uploads are rejected.
func NewAuthService(
	repo UserRepository,
	tokens *auth.TokenManager,
	hasher *auth.PasswordHasher,
	uploader media.Uploader,
	log *zap.Logger,
) *AuthService {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthService{
		repo:     repo,
		tokens:   tokens,
		hasher:   hasher,
		uploader: uploader,
		validate: validation.New(),
		events:   nopRecorder{},
		log:      log,
	}
}

// WithEvents sets the recorder that counts registrations and failed logins.
func (s *AuthService) WithEvents(r EventRecorder) *AuthService {
	if r != nil {
		s.events = r
	}
	return s
}

// Register creates a new account and returns a token for it.
func (s *AuthService) Register(ctx context.Context, in models.RegisterInput) (*models.AuthResponse, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	if err := s.validate.Validate(in); err != nil {
		return nil, err
	}

	exists, err := s.repo.EmailExists(ctx, in.Email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, apperr.Conflict("User already exists")
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	u := &models.User{
		ID:           uuid.NewString(),
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		Favorites:    []string{},
	}
	if err := s.repo.CreateUser(ctx, u); err != nil {
		return nil, err
	}

	token, err := s.tokens.Issue(u.ID)
	if err != nil {
		return nil, err
	}

	s.events.Inc(metrics.EventUserRegistered)
	s.log.Info("user registered", zap.String("user_id", u.ID), zap.String("username", u.Username))
	return &models.AuthResponse{Token: token, User: u.Public()}, nil
}

// Login verifies the credentials and returns a fresh token.
func (s *AuthService) Login(ctx context.Context, in models.LoginInput) (*models.AuthResponse, error) {
	in.Email = strings.TrimSpace(in.Email)
	if err := s.validate.Validate(in); err != nil {
		return nil, err
	}

	u, err := s.repo.GetUserByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			s.events.Inc(metrics.EventLoginFailed)
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	ok, err := s.hasher.Check(u.PasswordHash, in.Password)
	if err != nil {
		return nil, err
	}
	if !ok {
		s.events.Inc(metrics.EventLoginFailed)
		return nil, ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(u.ID)
	if err != nil {
		return nil, err
	}
	return &models.AuthResponse{Token: token, User: u.Public()}, nil
}

// Authenticate returns the id of the user a valid token was issued to.
func (s *AuthService) Authenticate(_ context.Context, token string) (string, error) {
	userID, err := s.tokens.Parse(token)
	if err != nil {
		return "", apperr.Auth("Not authorized, token failed").Wrap(err)
	}
	return userID, nil
}

// CurrentUser returns the public projection of the user with userID.
func (s *AuthService) CurrentUser(ctx context.Context, userID string) (*models.PublicUser, error) {
	u, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	pub := u.Public()
	return &pub, nil
}

// UpdateCurrentUser applies patch to the user's profile. When pic is not nil
// it is uploaded first and its URL replaces the profile picture.
func (s *AuthService) UpdateCurrentUser(ctx context.Context, userID string, patch models.UserPatch, pic *media.File) (*models.PublicUser, error) {
	if err := s.validateUserPatch(&patch); err != nil {
		return nil, err
	}

	u, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if pic != nil {
		url, err := upload(ctx, s.uploader, media.FolderProfiles, *pic)
		if err != nil {
			return nil, err
		}
		u.ProfilePic = &url
		s.events.Inc(metrics.EventUpload)
	}

	patch.Apply(u)
	if err := s.repo.UpdateUser(ctx, u); err != nil {
		return nil, err
	}

	s.log.Debug("profile updated", zap.String("user_id", u.ID))
	pub := u.Public()
	return &pub, nil
}

// validateUserPatch trims the identity fields of p and applies the rules
// registration enforces on them.
func (s *AuthService) validateUserPatch(p *models.UserPatch) error {
	if p.Username != nil {
		v := strings.TrimSpace(*p.Username)
		if v == "" {
			return apperr.Validation("username must not be empty")
		}
		p.Username = &v
	}
	if p.Email != nil {
		v := strings.TrimSpace(*p.Email)
		if v == "" {
			return apperr.Validation("email must not be empty")
		}
		if err := s.validate.Var("email", v, "email"); err != nil {
			return err
		}
		p.Email = &v
	}
	return nil
}

func upload(ctx context.Context, u media.Uploader, folder string, f media.File) (string, error) {
	if u == nil {
		return "", apperr.Validation("File uploads are not configured")
	}
	return u.Upload(ctx, folder, f)
}
