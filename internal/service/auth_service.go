package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/itdesk-io/itdesk/internal/auth"
	"github.com/itdesk-io/itdesk/internal/models"
	"github.com/itdesk-io/itdesk/internal/repository"
)

// ErrTooManyAttempts is returned while a client IP is locked out of login.
var ErrTooManyAttempts = errors.New("too many login attempts")

// User-facing login messages.
const (
	MsgTooManyAttempts    = "Too many login attempts. Please try again later."
	MsgInvalidCredentials = "Please enter a correct mobile number or email and password."
	MsgAccountDisabled    = "This account is inactive."
)

// LoginResult is a successful login: the user and the session token to hand back.
type LoginResult struct {
	User      *models.User
	Token     string
	ExpiresAt time.Time
	Redirect  string
	Message   string
}

// AuthService handles login, session issuing and session resolution.
type AuthService struct {
	authenticator *auth.Authenticator
	sessions      *auth.SessionManager
	limiter       *auth.LoginRateLimiter
	users         repository.IUserRepository
	policy        *auth.Policy
	sessionTTL    time.Duration
	rememberTTL   time.Duration
	now           func() time.Time
}

// NewAuthService wires the login flow. Zero TTLs select the defaults of one day and
// thirty days for remember-me sessions.
func NewAuthService(
	authenticator *auth.Authenticator,
	sessions *auth.SessionManager,
	limiter *auth.LoginRateLimiter,
	users repository.IUserRepository,
	policy *auth.Policy,
	sessionTTL, rememberTTL time.Duration,
) *AuthService {
	if sessionTTL <= 0 {
		sessionTTL = auth.DefaultSessionTTL
	}
	if rememberTTL <= 0 {
		rememberTTL = auth.RememberMeSessionTTL
	}
	return &AuthService{
		authenticator: authenticator,
		sessions:      sessions,
		limiter:       limiter,
		users:         users,
		policy:        policy,
		sessionTTL:    sessionTTL,
		rememberTTL:   rememberTTL,
		now:           time.Now,
	}
}

// Login reserves an attempt against the per-IP throttle, authenticates, and issues a
// session. Failed attempts keep their reservation; successful ones hand it back but do
// not reset the counter.
func (s *AuthService) Login(ctx context.Context, ip string, req models.LoginRequest) (*LoginResult, error) {
	remaining, allowed, err := s.limiter.Acquire(ctx, ip)
	if err != nil {
		// A broken counter store must not lock every user out.
		log.Printf("Login throttle unavailable for %s: %v", ip, err)
	} else if !allowed {
		log.Printf("Blocked login attempt from %s", ip)
		return nil, ErrTooManyAttempts
	}
	reserved := err == nil

	user, err := s.authenticator.Authenticate(ctx, strings.TrimSpace(req.Identifier), req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) || errors.Is(err, auth.ErrUserDisabled) {
			if reserved && remaining == 0 {
				log.Printf("Login attempts exhausted for %s", ip)
			}
		} else if reserved {
			s.release(ctx, ip)
		}
		return nil, err
	}
	if reserved {
		s.release(ctx, ip)
	}

	ttl := s.sessionTTL
	if req.RememberMe {
		ttl = s.rememberTTL
	}
	result, err := s.IssueSession(user, ttl)
	if err != nil {
		return nil, err
	}
	if err := s.users.UpdateLastLogin(ctx, user.ID, s.now().UTC()); err != nil {
		log.Printf("Failed to update last login for user %d: %v", user.ID, err)
	}
	result.Redirect = s.policy.LoginRedirect(user)
	result.Message = fmt.Sprintf("Welcome back, %s!", user.DisplayName())
	return result, nil
}

func (s *AuthService) release(ctx context.Context, ip string) {
	if err := s.limiter.Release(ctx, ip); err != nil {
		log.Printf("Failed to release login attempt for %s: %v", ip, err)
	}
}

// StartSession logs a freshly registered user in.
func (s *AuthService) StartSession(user *models.User) (*LoginResult, error) {
	result, err := s.IssueSession(user, s.sessionTTL)
	if err != nil {
		return nil, err
	}
	result.Redirect = models.RouteCustomerDashboard
	result.Message = fmt.Sprintf("Welcome, %s! Your account has been created and you are now logged in.", user.DisplayName())
	return result, nil
}

// IssueSession signs a session token for user.
func (s *AuthService) IssueSession(user *models.User, ttl time.Duration) (*LoginResult, error) {
	token, expires, err := s.sessions.GenerateToken(user.ID, user.Mobile, ttl)
	if err != nil {
		return nil, fmt.Errorf("failed to issue session: %w", err)
	}
	return &LoginResult{User: user, Token: token, ExpiresAt: expires}, nil
}

// Resolve validates a session token and loads its user. Group membership comes from
// the store on every call.
func (s *AuthService) Resolve(ctx context.Context, token string) (*models.User, error) {
	claims, err := s.sessions.ValidateToken(token)
	if err != nil {
		return nil, err
	}
	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, auth.ErrInvalidToken
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, auth.ErrUserDisabled
	}
	return user, nil
}

// LoginMessage maps a Login error to the text shown on the login form.
func LoginMessage(err error) string {
	switch {
	case errors.Is(err, ErrTooManyAttempts):
		return MsgTooManyAttempts
	case errors.Is(err, auth.ErrUserDisabled):
		return MsgAccountDisabled
	case errors.Is(err, auth.ErrInvalidCredentials):
		return MsgInvalidCredentials
	}
	return "Login failed. Please try again."
}
