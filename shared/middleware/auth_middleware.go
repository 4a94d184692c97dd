package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"transparencia-backend/shared/httpx"
	utils "transparencia-backend/shared/utils/auth"
)

// TokenValidator verifies an access token and returns its claims
type TokenValidator interface {
	Validate(token string) (*utils.Claims, error)
}

// RevocationChecker reports whether an access token id was revoked on logout
type RevocationChecker interface {
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

type revocationAwareValidator struct {
	next    TokenValidator
	checker RevocationChecker
}

// WithRevocation rejects tokens whose id the checker reports as revoked. A
// checker error lets the token through so a Redis outage does not lock
// everybody out.
func WithRevocation(next TokenValidator, checker RevocationChecker) TokenValidator {
	if checker == nil {
		return next
	}
	return &revocationAwareValidator{next: next, checker: checker}
}

func (v *revocationAwareValidator) Validate(token string) (*utils.Claims, error) {
	claims, err := v.next.Validate(token)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	revoked, err := v.checker.IsRevoked(ctx, claims.ID)
	if err == nil && revoked {
		return nil, errors.Join(utils.ErrInvalidToken, errors.New("token revoked"))
	}
	return claims, nil
}

// AuthMiddleware extracts user information from the bearer token and sets it in context
func AuthMiddleware(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header is required"})
			return
		}

		tokenString := ExtractTokenFromHeader(c.Request)
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization format. Expected Bearer {token}"})
			return
		}

		claims, err := validator.Validate(tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		userID, _ := claims.UserID()
		c.Set(httpx.KeyUserID, userID)
		c.Set(httpx.KeyUserEmail, claims.Email)
		c.Set(httpx.KeyClaims, claims)

		c.Next()
	}
}

// OptionalAuth sets the user in context when a valid token is present and
// never rejects the request
func OptionalAuth(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if tokenString := ExtractTokenFromHeader(c.Request); tokenString != "" {
			if claims, err := validator.Validate(tokenString); err == nil {
				userID, _ := claims.UserID()
				c.Set(httpx.KeyUserID, userID)
				c.Set(httpx.KeyUserEmail, claims.Email)
				c.Set(httpx.KeyClaims, claims)
			}
		}
		c.Next()
	}
}

// ClaimsFrom returns the claims stored by AuthMiddleware
func ClaimsFrom(c *gin.Context) (*utils.Claims, bool) {
	v, ok := c.Get(httpx.KeyClaims)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*utils.Claims)
	return claims, ok
}

// ExtractTokenFromHeader extracts the token from the Authorization header
func ExtractTokenFromHeader(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	tokenParts := strings.Split(authHeader, " ")
	if len(tokenParts) != 2 || tokenParts[0] != "Bearer" {
		return ""
	}

	return tokenParts[1]
}

// QueryToken copies the access_token query parameter into the Authorization
// header when the header is missing. Browsers cannot set headers on websocket
// handshakes.
func QueryToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("Authorization") == "" {
			if token := c.Query("access_token"); token != "" {
				c.Request.Header.Set("Authorization", "Bearer "+token)
			}
		}
		c.Next()
	}
}
