package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/itdesk-io/itdesk/internal/models"
	"github.com/itdesk-io/itdesk/internal/repository"
)

// UserRepository provides an in-memory implementation of repository.IUserRepository.
type UserRepository struct {
	s *Store
}

var _ repository.IUserRepository = (*UserRepository)(nil)

// Create creates a new user
func (r *UserRepository) Create(_ context.Context, user *models.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if err := r.checkUnique(user, 0); err != nil {
		return err
	}
	if user.DateJoined.IsZero() {
		user.DateJoined = nowUTC()
	}
	user.ID = r.s.nextUserID
	r.s.nextUserID++
	r.s.users[user.ID] = user.Clone()
	return nil
}

// checkUnique enforces the same unique indexes as the SQL schema. Caller holds the lock.
func (r *UserRepository) checkUnique(user *models.User, selfID uint) error {
	for id, other := range r.s.users {
		if id == selfID {
			continue
		}
		if other.Mobile == user.Mobile {
			return models.NewConflict("mobile")
		}
		if user.Email != nil && other.Email != nil && fold(*user.Email) == fold(*other.Email) {
			return models.NewConflict("email")
		}
	}
	return nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(_ context.Context, id uint) (*models.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	user, exists := r.s.users[id]
	if !exists {
		return nil, fmt.Errorf("user %d: %w", id, models.ErrNotFound)
	}
	return user.Clone(), nil
}

func (r *UserRepository) GetByMobile(_ context.Context, mobile string) (*models.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, user := range r.s.users {
		if user.Mobile == mobile {
			return user.Clone(), nil
		}
	}
	return nil, fmt.Errorf("user %s: %w", mobile, models.ErrNotFound)
}

// GetByEmail retrieves a user by email, ignoring case
func (r *UserRepository) GetByEmail(_ context.Context, email string) (*models.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	want := fold(email)
	for _, user := range r.s.users {
		if user.Email != nil && fold(*user.Email) == want {
			return user.Clone(), nil
		}
	}
	return nil, fmt.Errorf("user %s: %w", email, models.ErrNotFound)
}

func (r *UserRepository) GetByMobileOrEmail(ctx context.Context, identifier string) (*models.User, error) {
	user, err := r.GetByMobile(ctx, identifier)
	if err == nil || !strings.Contains(identifier, "@") {
		return user, err
	}
	return r.GetByEmail(ctx, identifier)
}

// Update updates an existing user
func (r *UserRepository) Update(_ context.Context, user *models.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.users[user.ID]; !exists {
		return fmt.Errorf("user %d: %w", user.ID, models.ErrNotFound)
	}
	if err := r.checkUnique(user, user.ID); err != nil {
		return err
	}
	r.s.users[user.ID] = user.Clone()
	return nil
}

func (r *UserRepository) UpdateLastLogin(_ context.Context, id uint, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	user, exists := r.s.users[id]
	if !exists {
		return fmt.Errorf("user %d: %w", id, models.ErrNotFound)
	}
	user.LastLogin = &at
	return nil
}

// List returns users ordered by id
func (r *UserRepository) List(_ context.Context, opts repository.UserListOptions) ([]*models.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	needle := fold(opts.Search)
	users := make([]*models.User, 0, len(r.s.users))
	for _, user := range r.s.users {
		if opts.Group != "" && !user.InGroup(opts.Group) {
			continue
		}
		if opts.ActiveOnly && !user.IsActive {
			continue
		}
		if needle != "" && !containsFold(user.Mobile, needle) && !containsFold(user.EmailValue(), needle) &&
			!containsFold(user.FirstName, needle) && !containsFold(user.LastName, needle) {
			continue
		}
		users = append(users, user.Clone())
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })

	if opts.Offset > 0 {
		if opts.Offset >= len(users) {
			return []*models.User{}, nil
		}
		users = users[opts.Offset:]
	}
	if opts.Limit > 0 && len(users) > opts.Limit {
		users = users[:opts.Limit]
	}
	return users, nil
}
