package models

import (
	"strings"
	"time"
)

// Group is a capability tag. A user's role is exactly the set of groups they belong to.
type Group string

const (
	GroupCustomers Group = "Customers"
	GroupAgents    Group = "Agents"
	GroupAdmins    Group = "Admins"
)

// AllGroups lists the groups known to the system.
var AllGroups = []Group{GroupCustomers, GroupAgents, GroupAdmins}

// ParseGroup validates a group name.
func ParseGroup(name string) (Group, bool) {
	for _, g := range AllGroups {
		if string(g) == name {
			return g, true
		}
	}
	return "", false
}

type User struct {
	ID           uint       `json:"id" db:"id"`
	Mobile       string     `json:"mobile" db:"mobile"`
	Email        *string    `json:"email,omitempty" db:"email"`
	FirstName    string     `json:"first_name" db:"first_name"`
	LastName     string     `json:"last_name" db:"last_name"`
	PasswordHash string     `json:"-" db:"password_hash"` // Never expose in JSON
	IsActive     bool       `json:"is_active" db:"is_active"`
	IsStaff      bool       `json:"is_staff" db:"is_staff"`
	IsSuperuser  bool       `json:"is_superuser" db:"is_superuser"`
	DateJoined   time.Time  `json:"date_joined" db:"date_joined"`
	LastLogin    *time.Time `json:"last_login,omitempty" db:"last_login"`
	Groups       []Group    `json:"groups" db:"-"`
}

// InGroup reports plain membership, without any superuser or staff override.
func (u *User) InGroup(g Group) bool {
	if u == nil {
		return false
	}
	for _, have := range u.Groups {
		if have == g {
			return true
		}
	}
	return false
}

// AddGroup adds g unless the user already belongs to it.
func (u *User) AddGroup(g Group) {
	if !u.InGroup(g) {
		u.Groups = append(u.Groups, g)
	}
}

// FullName returns first and last name separated by a space, trimmed.
func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// DisplayName is the label shown next to tickets and messages.
func (u *User) DisplayName() string {
	if u.FirstName != "" && u.LastName != "" {
		return u.FirstName + " " + u.LastName
	}
	if u.FirstName != "" {
		return u.FirstName
	}
	return u.Mobile
}

// EmailValue returns the email or "" when none is set.
func (u *User) EmailValue() string {
	if u.Email == nil {
		return ""
	}
	return *u.Email
}

// Clone returns a deep copy so stores never hand out shared slices.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	cp := *u
	cp.Groups = append([]Group(nil), u.Groups...)
	if u.Email != nil {
		e := *u.Email
		cp.Email = &e
	}
	if u.LastLogin != nil {
		t := *u.LastLogin
		cp.LastLogin = &t
	}
	return &cp
}

type LoginRequest struct {
	Identifier string `form:"identifier" json:"identifier" binding:"required"`
	Password   string `form:"password" json:"password" binding:"required"`
	RememberMe bool   `form:"remember_me" json:"remember_me"`
}

type RegisterRequest struct {
	Mobile    string `form:"mobile" json:"mobile" binding:"required"`
	Email     string `form:"email" json:"email" binding:"omitempty,email"`
	FirstName string `form:"first_name" json:"first_name" binding:"max=150"`
	LastName  string `form:"last_name" json:"last_name" binding:"max=150"`
	Password1 string `form:"password1" json:"password1" binding:"required"`
	Password2 string `form:"password2" json:"password2" binding:"required,eqfield=Password1"`
}

// CreateUserRequest is used by administrators and the CLI to create any kind of account.
type CreateUserRequest struct {
	Mobile      string   `json:"mobile" yaml:"mobile" binding:"required"`
	Email       string   `json:"email" yaml:"email" binding:"omitempty,email"`
	FirstName   string   `json:"first_name" yaml:"first_name" binding:"max=150"`
	LastName    string   `json:"last_name" yaml:"last_name" binding:"max=150"`
	Password    string   `json:"password" yaml:"password" binding:"required"`
	Groups      []string `json:"groups" yaml:"groups" binding:"dive,oneof=Customers Agents Admins"`
	IsStaff     bool     `json:"is_staff" yaml:"is_staff"`
	IsSuperuser bool     `json:"is_superuser" yaml:"is_superuser"`
}

// UpdateUserRequest carries optional changes; nil fields are left alone.
type UpdateUserRequest struct {
	Mobile      *string   `json:"mobile"`
	Password    *string   `json:"password"`
	Email       *string   `json:"email"`
	FirstName   *string   `json:"first_name"`
	LastName    *string   `json:"last_name"`
	Groups      *[]string `json:"groups"`
	IsActive    *bool     `json:"is_active"`
	IsStaff     *bool     `json:"is_staff"`
	IsSuperuser *bool     `json:"is_superuser"`
}

// Fields names the submitted form fields so read-only ones can be rejected.
func (r *UpdateUserRequest) Fields() []string {
	var out []string
	if r.Mobile != nil {
		out = append(out, "mobile")
	}
	if r.Password != nil {
		out = append(out, "password")
	}
	if r.Email != nil {
		out = append(out, "email")
	}
	if r.FirstName != nil {
		out = append(out, "first_name")
	}
	if r.LastName != nil {
		out = append(out, "last_name")
	}
	if r.Groups != nil {
		out = append(out, "groups")
	}
	if r.IsActive != nil {
		out = append(out, "is_active")
	}
	if r.IsStaff != nil {
		out = append(out, "is_staff")
	}
	if r.IsSuperuser != nil {
		out = append(out, "is_superuser")
	}
	return out
}
