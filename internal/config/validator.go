package config

import (
	"fmt"
	"log"
	"net"
	"strings"
)

const exampleJWTSecret = "CHANGE_THIS_SECRET_KEY_BEFORE_USE"

// SecretValidator checks settings that are unsafe to ship. In production problems are
// errors; elsewhere they are logged as warnings.
type SecretValidator struct {
	config   *Config
	errors   []string
	warnings []string
}

func NewSecretValidator(cfg *Config) *SecretValidator {
	return &SecretValidator{
		config:   cfg,
		errors:   []string{},
		warnings: []string{},
	}
}

func (v *SecretValidator) Validate() error {
	isProduction := v.config.App.IsProduction()

	v.validateJWTSecret(isProduction)
	v.validateDatabase(isProduction)
	v.validateStorage()
	v.validateSecurity()

	if len(v.errors) > 0 {
		return fmt.Errorf("config validation failed:\n%s", strings.Join(v.errors, "\n"))
	}
	if len(v.warnings) > 0 {
		log.Printf("Configuration warnings:\n%s", strings.Join(v.warnings, "\n"))
	}
	return nil
}

// Warnings returns the problems that did not fail validation.
func (v *SecretValidator) Warnings() []string {
	return v.warnings
}

func (v *SecretValidator) validateJWTSecret(isProduction bool) {
	secret := v.config.Auth.JWT.Secret
	if secret == "" {
		v.errors = append(v.errors, "   auth.jwt.secret is not set")
		return
	}
	if secret == exampleJWTSecret {
		v.addError("auth.jwt.secret is using the default example value", isProduction)
		return
	}
	// In development/test, allow prefixed secrets
	if !isProduction && (strings.HasPrefix(secret, "dev-") || strings.HasPrefix(secret, "test-")) {
		return
	}
	if len(secret) < 32 {
		v.addError("auth.jwt.secret must be at least 32 characters long", isProduction)
	}
}

func (v *SecretValidator) validateDatabase(isProduction bool) {
	db := v.config.Database
	if db.InMemory() {
		if isProduction {
			v.addWarning("database.driver is memory; tickets are lost on restart")
		}
		return
	}
	if db.DSN == "" && db.Name == "" {
		v.errors = append(v.errors, "   database.name or database.dsn is required for driver "+db.Driver)
	}
}

func (v *SecretValidator) validateStorage() {
	s := v.config.Storage
	switch strings.ToLower(s.Type) {
	case "", "local":
		if s.Local.Path == "" {
			v.errors = append(v.errors, "   storage.local.path is required")
		}
	case "minio", "s3":
		if s.Minio.Endpoint == "" || s.Minio.Bucket == "" {
			v.errors = append(v.errors, "   storage.minio.endpoint and storage.minio.bucket are required")
		}
	default:
		v.errors = append(v.errors, fmt.Sprintf("   storage.type %q is not supported", s.Type))
	}
}

func (v *SecretValidator) validateSecurity() {
	s := v.config.Security
	if s.LoginAttempts <= 0 || s.LoginWindow <= 0 {
		v.errors = append(v.errors, "   security.login_attempts and security.login_window must be positive")
	}
	if s.UploadLimit <= 0 || s.UploadWindow <= 0 {
		v.errors = append(v.errors, "   security.upload_limit and security.upload_window must be positive")
	}
	for _, entry := range s.TrustedProxies {
		if net.ParseIP(entry) == nil {
			if _, _, err := net.ParseCIDR(entry); err != nil {
				v.errors = append(v.errors, fmt.Sprintf("   security.trusted_proxies entry %q is not an IP address or CIDR range", entry))
			}
		}
	}
	if len(s.AdminIPWhitelist) == 0 {
		v.addWarning("security.admin_ip_whitelist is empty; admin routes are reachable from any address")
	}
}

func (v *SecretValidator) addError(message string, isProduction bool) {
	if isProduction {
		v.errors = append(v.errors, "   "+message)
	} else {
		v.warnings = append(v.warnings, "   "+message)
	}
}

func (v *SecretValidator) addWarning(message string) {
	v.warnings = append(v.warnings, "   "+message)
}

func ValidateSecrets(cfg *Config) error {
	return NewSecretValidator(cfg).Validate()
}
