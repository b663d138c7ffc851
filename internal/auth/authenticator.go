package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/itdesk-io/itdesk/internal/models"
)

// Common errors
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserDisabled       = errors.New("user account is disabled")
)

// UserLookup finds an account by mobile number or, case-insensitively, by email.
type UserLookup interface {
	GetByMobileOrEmail(ctx context.Context, identifier string) (*models.User, error)
}

// Authenticator verifies credentials. It never creates sessions; callers do that with
// the returned user.
type Authenticator struct {
	users  UserLookup
	hasher *PasswordHasher
}

func NewAuthenticator(users UserLookup, hasher *PasswordHasher) *Authenticator {
	return &Authenticator{users: users, hasher: hasher}
}

// Authenticate returns the user matching identifier and password.
func (a *Authenticator) Authenticate(ctx context.Context, identifier, password string) (*models.User, error) {
	if identifier == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := a.users.GetByMobileOrEmail(ctx, identifier)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			a.hasher.burn(password)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	if !a.hasher.VerifyPassword(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, ErrUserDisabled
	}
	return user, nil
}
