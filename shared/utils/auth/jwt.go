package utils

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"transparencia-backend/shared/config"
	"transparencia-backend/shared/database/models"
)

// ErrInvalidToken is returned for malformed, tampered or expired tokens
var ErrInvalidToken = errors.New("invalid token")

// Claims carried by an access token. The subject is the user id.
type Claims struct {
	Email       string   `json:"email"`
	Name        string   `json:"name"`
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
	jwt.RegisteredClaims
}

// UserID parses the subject as a user id
func (c *Claims) UserID() (uuid.UUID, error) {
	return uuid.Parse(c.Subject)
}

// HasAnyPermission reports whether the claims grant at least one of codes
func (c *Claims) HasAnyPermission(codes ...string) bool {
	for _, want := range codes {
		for _, have := range c.Permissions {
			if want == have {
				return true
			}
		}
	}
	return false
}

// TokenIssuer signs and verifies HS256 access tokens
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer creates an issuer. A non-positive ttl falls back to 30 minutes.
func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// DefaultIssuer builds an issuer from the process configuration
func DefaultIssuer() *TokenIssuer {
	cfg := config.GetConfig()
	return NewTokenIssuer(cfg.JWTSecret, cfg.JWTAccessTTL)
}

// TTL returns the access token lifetime
func (i *TokenIssuer) TTL() time.Duration {
	return i.ttl
}

// Issue creates an access token for a user whose roles and permissions are loaded
func (i *TokenIssuer) Issue(user *models.User) (string, time.Time, error) {
	now := i.now()
	expiresAt := now.Add(i.ttl)

	claims := Claims{
		Email:       user.Email,
		Name:        user.FullName(),
		Roles:       user.RoleNames(),
		Permissions: user.PermissionCodes(),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   user.ID.String(),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Validate verifies the signature and expiry of an access token
func (i *TokenIssuer) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return i.secret, nil
	}, jwt.WithTimeFunc(i.now))
	if err != nil {
		return nil, errors.Join(ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if _, err := claims.UserID(); err != nil {
		return nil, errors.Join(ErrInvalidToken, err)
	}
	return claims, nil
}

// ValidateJWT validates an access token with the configured secret
func ValidateJWT(tokenString string) (*Claims, error) {
	return DefaultIssuer().Validate(tokenString)
}
