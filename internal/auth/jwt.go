package auth

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

// Session lifetimes for normal and "remember me" logins.
const (
	DefaultSessionTTL    = 24 * time.Hour
	RememberMeSessionTTL = 30 * 24 * time.Hour
)

type Claims struct {
	UserID uint   `json:"user_id"`
	Mobile string `json:"mobile"`
	jwt.RegisteredClaims
}

// SessionManager issues and validates signed session tokens. The token only identifies
// the user; groups are loaded fresh on every request.
type SessionManager struct {
	secretKey []byte
	issuer    string
}

func NewSessionManager(secretKey, issuer string) *SessionManager {
	if issuer == "" {
		issuer = "itdesk"
	}
	return &SessionManager{
		secretKey: []byte(secretKey),
		issuer:    issuer,
	}
}

func (m *SessionManager) GenerateToken(userID uint, mobile string, ttl time.Duration) (string, time.Time, error) {
	now := time.Now()
	expires := now.Add(ttl)
	claims := Claims{
		UserID: userID,
		Mobile: mobile,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expires),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    m.issuer,
			Subject:   strconv.FormatUint(uint64(userID), 10),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secretKey)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expires, nil
}

func (m *SessionManager) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return m.secretKey, nil
	}, jwt.WithIssuer(m.issuer))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
