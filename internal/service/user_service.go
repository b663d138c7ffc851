package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/itdesk-io/itdesk/internal/admin"
	"github.com/itdesk-io/itdesk/internal/auth"
	"github.com/itdesk-io/itdesk/internal/models"
	"github.com/itdesk-io/itdesk/internal/repository"
)

// MinPasswordLength is enforced on registration and admin-created accounts.
const MinPasswordLength = 8

const (
	msgRequired      = "This field is required."
	msgInvalidEmail  = "Enter a valid email address."
	msgInvalidChoice = "Select a valid choice."
)

var mobilePattern = regexp.MustCompile(`^\+?\d{7,15}$`)

// NormalizeMobile strips the spaces and dashes people type into phone numbers.
func NormalizeMobile(s string) string {
	return strings.NewReplacer(" ", "", "-", "").Replace(strings.TrimSpace(s))
}

// ValidMobile reports whether an already normalized mobile number is acceptable.
func ValidMobile(s string) bool {
	return mobilePattern.MatchString(s)
}

// NormalizeEmail returns nil for a blank address, so "no email" is always stored as
// NULL. The domain part is lowercased.
func NormalizeEmail(s string) (*string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if err := validate.Var(s, "email"); err != nil {
		return nil, errors.New(msgInvalidEmail)
	}
	at := strings.LastIndex(s, "@")
	email := s[:at] + strings.ToLower(s[at:])
	return &email, nil
}

// UserService owns account creation and administration.
type UserService struct {
	users  repository.IUserRepository
	hasher *auth.PasswordHasher
	policy *auth.Policy
	fields *admin.FieldPolicy
}

func NewUserService(users repository.IUserRepository, hasher *auth.PasswordHasher, policy *auth.Policy) *UserService {
	return &UserService{
		users:  users,
		hasher: hasher,
		policy: policy,
		fields: admin.UserFieldPolicy(),
	}
}

// Fields exposes the admin form policy for handlers that render field metadata.
func (s *UserService) Fields() *admin.FieldPolicy {
	return s.fields
}

// Register creates an active customer account from the public sign-up form.
func (s *UserService) Register(ctx context.Context, req models.RegisterRequest) (*models.User, error) {
	req.Mobile = NormalizeMobile(req.Mobile)
	req.Email = strings.TrimSpace(req.Email)
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)

	verr := models.NewValidationError()
	if err := validateRequest(verr, req); err != nil {
		return nil, err
	}
	mobile := req.Mobile
	if mobile != "" && !ValidMobile(mobile) {
		verr.Add("mobile", "Enter a valid mobile number.")
	}
	email, err := NormalizeEmail(req.Email)
	if err != nil {
		verr.Add("email", err.Error())
	}
	if req.Password1 != "" {
		if err := auth.ValidatePassword(req.Password1, MinPasswordLength); err != nil {
			verr.Add("password1", sentence(err.Error()))
		}
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	if err := s.checkAvailable(ctx, mobile, email); err != nil {
		return nil, err
	}

	hash, err := s.hasher.HashPassword(req.Password1)
	if err != nil {
		return nil, err
	}
	user := &models.User{
		Mobile:       mobile,
		Email:        email,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		PasswordHash: hash,
		IsActive:     true,
		Groups:       []models.Group{models.GroupCustomers},
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	log.Printf("Registered customer %d (%s)", user.ID, user.Mobile)
	return user, nil
}

// CreateUser creates any kind of account without an actor check. It backs the CLI and
// the admin form.
func (s *UserService) CreateUser(ctx context.Context, req models.CreateUserRequest) (*models.User, error) {
	req.Mobile = NormalizeMobile(req.Mobile)
	req.Email = strings.TrimSpace(req.Email)
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	groupNames := make([]string, len(req.Groups))
	for i, name := range req.Groups {
		groupNames[i] = strings.TrimSpace(name)
	}
	req.Groups = groupNames

	verr := models.NewValidationError()
	if err := validateRequest(verr, req); err != nil {
		return nil, err
	}
	mobile := req.Mobile
	if mobile != "" && !ValidMobile(mobile) {
		verr.Add("mobile", "Enter a valid mobile number.")
	}
	email, err := NormalizeEmail(req.Email)
	if err != nil {
		verr.Add("email", err.Error())
	}
	if req.Password != "" {
		if err := auth.ValidatePassword(req.Password, MinPasswordLength); err != nil {
			verr.Add("password", sentence(err.Error()))
		}
	}
	groups, _ := parseGroups(req.Groups)
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	if err := s.checkAvailable(ctx, mobile, email); err != nil {
		return nil, err
	}

	hash, err := s.hasher.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}
	user := &models.User{
		Mobile:       mobile,
		Email:        email,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		PasswordHash: hash,
		IsActive:     true,
		IsStaff:      req.IsStaff || req.IsSuperuser,
		IsSuperuser:  req.IsSuperuser,
		Groups:       groups,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// AdminCreateUser is CreateUser behind the admin check.
func (s *UserService) AdminCreateUser(ctx context.Context, actor *models.User, req models.CreateUserRequest) (*models.User, *models.Outcome, error) {
	if d := s.policy.CanManageUsers(actor); !d.Allowed {
		return nil, d.Outcome(), nil
	}
	user, err := s.CreateUser(ctx, req)
	if err != nil {
		return nil, nil, err
	}
	log.Printf("AUDIT: admin %d created user %d (%s) groups=%v staff=%t superuser=%t",
		actor.ID, user.ID, user.Mobile, user.Groups, user.IsStaff, user.IsSuperuser)
	return user, models.Succeeded("/admin/users", fmt.Sprintf("User %s created.", user.DisplayName())), nil
}

// AdminUpdateUser applies an admin edit. The mobile number and password are read-only
// here, and an admin cannot deactivate their own account.
func (s *UserService) AdminUpdateUser(ctx context.Context, actor *models.User, id uint, req models.UpdateUserRequest) (*models.User, *models.Outcome, error) {
	if d := s.policy.CanManageUsers(actor); !d.Allowed {
		return nil, d.Outcome(), nil
	}
	if err := s.fields.Check(req.Fields(), false); err != nil {
		return nil, nil, err
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	verr := models.NewValidationError()
	if req.Email != nil {
		email, err := NormalizeEmail(*req.Email)
		if err != nil {
			verr.Add("email", err.Error())
		} else if email != nil && !strings.EqualFold(*email, user.EmailValue()) {
			if _, err := s.users.GetByEmail(ctx, *email); err == nil {
				return nil, nil, models.NewConflict("email")
			} else if !errors.Is(err, models.ErrNotFound) {
				return nil, nil, err
			}
		}
		user.Email = email
	}
	if req.FirstName != nil {
		user.FirstName = strings.TrimSpace(*req.FirstName)
	}
	if req.LastName != nil {
		user.LastName = strings.TrimSpace(*req.LastName)
	}
	if req.Groups != nil {
		groups, ok := parseGroups(*req.Groups)
		if !ok {
			verr.Add("groups", msgInvalidChoice)
		}
		user.Groups = groups
	}
	if req.IsActive != nil {
		if !*req.IsActive && user.ID == actor.ID {
			verr.Add("is_active", "You cannot deactivate your own account.")
		}
		user.IsActive = *req.IsActive
	}
	if req.IsStaff != nil {
		user.IsStaff = *req.IsStaff
	}
	if req.IsSuperuser != nil {
		user.IsSuperuser = *req.IsSuperuser
	}
	if err := verr.OrNil(); err != nil {
		return nil, nil, err
	}

	if err := s.users.Update(ctx, user); err != nil {
		return nil, nil, err
	}
	log.Printf("AUDIT: admin %d updated user %d fields=%v", actor.ID, user.ID, req.Fields())
	return user, models.Succeeded("/admin/users", fmt.Sprintf("User %s updated.", user.DisplayName())), nil
}

// ListUsers backs the admin user list.
func (s *UserService) ListUsers(ctx context.Context, actor *models.User, opts repository.UserListOptions) ([]*models.User, *models.Outcome, error) {
	if d := s.policy.CanManageUsers(actor); !d.Allowed {
		return nil, d.Outcome(), nil
	}
	if opts.Limit <= 0 || opts.Limit > 200 {
		opts.Limit = 50
	}
	users, err := s.users.List(ctx, opts)
	if err != nil {
		return nil, nil, err
	}
	return users, nil, nil
}

// Agents lists the active accounts tickets can be assigned to.
func (s *UserService) Agents(ctx context.Context) ([]*models.User, error) {
	return listAssignees(ctx, s.users, s.policy)
}

// GetByMobile looks an account up by its normalized mobile number.
func (s *UserService) GetByMobile(ctx context.Context, mobile string) (*models.User, error) {
	return s.users.GetByMobile(ctx, NormalizeMobile(mobile))
}

// SetLastLogin is called after a successful login.
func (s *UserService) SetLastLogin(ctx context.Context, id uint, at time.Time) error {
	return s.users.UpdateLastLogin(ctx, id, at)
}

// checkAvailable reports a friendly conflict before the insert. The repository still
// maps unique-index violations for requests that race past this check.
func (s *UserService) checkAvailable(ctx context.Context, mobile string, email *string) error {
	if _, err := s.users.GetByMobile(ctx, mobile); err == nil {
		return models.NewConflict("mobile")
	} else if !errors.Is(err, models.ErrNotFound) {
		return err
	}
	if email != nil {
		if _, err := s.users.GetByEmail(ctx, *email); err == nil {
			return models.NewConflict("email")
		} else if !errors.Is(err, models.ErrNotFound) {
			return err
		}
	}
	return nil
}

func listAssignees(ctx context.Context, users repository.IUserRepository, policy *auth.Policy) ([]*models.User, error) {
	all, err := users.List(ctx, repository.UserListOptions{ActiveOnly: true})
	if err != nil {
		return nil, err
	}
	out := make([]*models.User, 0, len(all))
	for _, u := range all {
		if policy.CanBeAssignee(u) {
			out = append(out, u)
		}
	}
	return out, nil
}

func parseGroups(names []string) ([]models.Group, bool) {
	groups := make([]models.Group, 0, len(names))
	ok := true
	for _, name := range names {
		g, valid := models.ParseGroup(strings.TrimSpace(name))
		if !valid {
			ok = false
			continue
		}
		u := models.User{Groups: groups}
		if !u.InGroup(g) {
			groups = append(groups, g)
		}
	}
	return groups, ok
}

// sentence capitalizes a lower-case error string for display.
func sentence(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:] + "."
}
