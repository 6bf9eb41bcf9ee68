package services

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/gamevault/apiserver/internal/auth"
	"github.com/gamevault/apiserver/internal/store"
	"github.com/gamevault/apiserver/types"
)

const minUsernameLength = 3

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id int) (types.User, error)
	FindByIdentity(ctx context.Context, identity string) (types.User, error)
	ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error)
	Exists(ctx context.Context, id int) (bool, error)
	Create(ctx context.Context, user types.User) (types.User, error)
}

// UserService owns registration and credential checks.
type UserService struct {
	repo UserRepository
	hash func(password string) (string, error)
}

// NewUserService constructs a UserService backed by repo.
func NewUserService(repo UserRepository) *UserService {
	return &UserService{repo: repo, hash: auth.HashPassword}
}

// Register validates and stores a new account with a bcrypt password hash.
func (s *UserService) Register(ctx context.Context, username, email, password string) (types.User, error) {
	username = strings.TrimSpace(username)
	email = normalizeEmail(email)
	if username == "" || email == "" || password == "" {
		return types.User{}, invalid("username, email and password are required")
	}
	if utf8.RuneCountInString(username) < minUsernameLength {
		return types.User{}, invalid("username must be at least 3 characters")
	}
	if len(password) > auth.MaxPasswordBytes {
		return types.User{}, invalid("password must be at most 72 bytes")
	}

	exists, err := s.repo.ExistsByUsernameOrEmail(ctx, username, email)
	if err != nil {
		return types.User{}, err
	}
	if exists {
		return types.User{}, ErrDuplicateIdentity
	}

	hashed, err := s.hash(password)
	if err != nil {
		return types.User{}, err
	}

	user, err := s.repo.Create(ctx, types.User{
		Username:     username,
		Email:        email,
		PasswordHash: hashed,
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return types.User{}, ErrDuplicateIdentity
		}
		return types.User{}, err
	}
	return user, nil
}

// FindByIdentity looks a user up by username or email.
func (s *UserService) FindByIdentity(ctx context.Context, emailOrUsername string) (types.User, error) {
	return s.repo.FindByIdentity(ctx, strings.TrimSpace(emailOrUsername))
}

// VerifyPassword reports whether candidate matches the user's stored hash.
func (s *UserService) VerifyPassword(user types.User, candidate string) bool {
	return auth.VerifyPassword(user.PasswordHash, candidate)
}

// Login resolves the identity and checks the password. Unknown identities and
// wrong passwords are indistinguishable to the caller.
func (s *UserService) Login(ctx context.Context, emailOrUsername, password string) (types.User, error) {
	if strings.TrimSpace(emailOrUsername) == "" || password == "" {
		return types.User{}, invalid("emailOrUsername and password are required")
	}

	user, err := s.FindByIdentity(ctx, emailOrUsername)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, ErrInvalidCredentials
		}
		return types.User{}, err
	}
	if !s.VerifyPassword(user, password) {
		return types.User{}, ErrInvalidCredentials
	}
	return user, nil
}

// GetByID returns the user with the given id.
func (s *UserService) GetByID(ctx context.Context, id int) (types.User, error) {
	return s.repo.GetByID(ctx, id)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
