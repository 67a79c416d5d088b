package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/sautihub/core-api/internal/user/entity"
	userrepo "github.com/sautihub/core-api/internal/user/repo"
)

// PasswordHasher defines minimal hashing interface (abstract so we can swap to argon2 later).
type PasswordHasher interface {
	Hash(pw string) (string, error)
	Verify(hash, pw string) bool
}

// BcryptHasher implementation.
type BcryptHasher struct{ Cost int }

func (b BcryptHasher) Hash(pw string) (string, error) {
	cost := b.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	h, err := bcrypt.GenerateFromPassword([]byte(pw), cost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

func (b BcryptHasher) Verify(hash, pw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}

// Repository is the persistence surface the service needs.
type Repository interface {
	Create(ctx context.Context, u *entity.User) (int64, error)
	GetByUsername(ctx context.Context, username string) (*entity.User, error)
	GetByEmail(ctx context.Context, email string) (*entity.User, error)
	GetByID(ctx context.Context, id int64) (*entity.User, error)
	Deactivate(ctx context.Context, id int64) error
}

var (
	ErrValidation     = errors.New("validation failed")
	ErrUsernameTaken  = errors.New("username already registered")
	ErrEmailTaken     = errors.New("email already registered")
	ErrBadCredentials = errors.New("invalid credentials")
	ErrDisabled       = errors.New("account disabled")
	ErrUserNotFound   = errors.New("user not found")
)

// UserService orchestrates registration, authentication and account lifecycle.
type UserService struct {
	repo   Repository
	hasher PasswordHasher
}

func NewUserService(r Repository, hasher PasswordHasher) *UserService {
	if hasher == nil {
		hasher = BcryptHasher{Cost: 12}
	}
	return &UserService{repo: r, hasher: hasher}
}

// Register creates an account. Creator accounts may carry a display name and
// a payout phone number.
func (s *UserService) Register(ctx context.Context, username, email, password string, isCreator bool, creatorName, phoneNumber string) (*entity.User, error) {
	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))

	if len(username) < 3 {
		return nil, fmt.Errorf("%w: username must be at least 3 characters", ErrValidation)
	}
	if !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: invalid email address", ErrValidation)
	}
	if len(password) < 8 {
		return nil, fmt.Errorf("%w: password must be at least 8 characters", ErrValidation)
	}

	if _, err := s.repo.GetByUsername(ctx, username); err == nil {
		return nil, ErrUsernameTaken
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if _, err := s.repo.GetByEmail(ctx, email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}

	u := &entity.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		IsCreator:    isCreator,
		Status:       "active",
	}
	if name := strings.TrimSpace(creatorName); name != "" {
		u.CreatorName = &name
	}
	if phone := strings.TrimSpace(phoneNumber); phone != "" {
		u.PhoneNumber = &phone
	}

	if _, err := s.repo.Create(ctx, u); err != nil {
		// constraint backstop for racing registrations
		if userrepo.IsUniqueViolation(err, "users_username_key") {
			return nil, ErrUsernameTaken
		}
		if userrepo.IsUniqueViolation(err, "users_email_key") {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	return u, nil
}

// Authenticate verifies username/password and returns the account.
func (s *UserService) Authenticate(ctx context.Context, username, password string) (*entity.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, ErrBadCredentials
	}

	u, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBadCredentials
		} // avoid user enumeration
		return nil, err
	}
	if u.Status == "disabled" {
		return nil, ErrDisabled
	}
	if !s.hasher.Verify(u.PasswordHash, password) {
		return nil, ErrBadCredentials
	}
	return u, nil
}

// GetByID returns the account or ErrUserNotFound.
func (s *UserService) GetByID(ctx context.Context, id int64) (*entity.User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return u, nil
}

// Deactivate soft-disables an account. The row is retained so grants and
// payment history keep their references.
func (s *UserService) Deactivate(ctx context.Context, id int64) error {
	if _, err := s.GetByID(ctx, id); err != nil {
		return err
	}
	return s.repo.Deactivate(ctx, id)
}
