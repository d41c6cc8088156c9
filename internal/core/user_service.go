package core

import (
	"context"
	"errors"
	"fmt"

	"promptcal.io/prompt-calibrate/internal/auth"
	"promptcal.io/prompt-calibrate/internal/store"
)

type UserService struct {
	dbStore *store.SQLiteStore
	tokens  *auth.TokenService
}

func NewUserService(db *store.SQLiteStore, tokens *auth.TokenService) *UserService {
	return &UserService{dbStore: db, tokens: tokens}
}

// Register hashes the password and persists the user. A duplicate email is
// rejected with ErrConflict.
func (s *UserService) Register(ctx context.Context, name, email, password string) (*store.User, error) {
	passwordHash, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := s.dbStore.CreateUser(ctx, name, email, passwordHash)
	if err != nil {
		if errors.Is(err, store.ErrEmailTaken) {
			return nil, fmt.Errorf("email %s: %w", email, ErrConflict)
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// Login verifies the credentials and issues a bearer token. Unknown email
// and wrong password produce the same ErrUnauthorized so callers cannot
// enumerate accounts.
func (s *UserService) Login(ctx context.Context, email, password string) (string, *store.User, error) {
	user, err := s.dbStore.GetUserByEmail(ctx, email)
	if err != nil {
		return "", nil, fmt.Errorf("failed to query user: %w", err)
	}
	if user == nil || !auth.CheckPasswordHash(password, user.PasswordHash) {
		return "", nil, ErrUnauthorized
	}

	token, err := s.tokens.GenerateToken(user.ID)
	if err != nil {
		return "", nil, fmt.Errorf("failed to generate token: %w", err)
	}
	return token, user, nil
}

// Authenticate resolves a bearer token to its user. Malformed and expired
// tokens, and subjects with no matching user, all yield ErrUnauthorized.
func (s *UserService) Authenticate(ctx context.Context, token string) (*store.User, error) {
	userID, err := s.tokens.ValidateToken(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}

	user, err := s.dbStore.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("%w: user not found", ErrUnauthorized)
	}
	return user, nil
}
