package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RequirePermission lets the request through when the token grants any one of
// codes. It must run after AuthMiddleware.
func RequirePermission(codes ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := ClaimsFrom(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid or missing token",
				"code":  "UNAUTHORIZED",
			})
			return
		}

		if !claims.HasAnyPermission(codes...) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "Insufficient permissions",
				"code":  "FORBIDDEN",
				"details": gin.H{
					"required_any": codes,
				},
			})
			return
		}

		c.Set("permission_checked", true)
		c.Next()
	}
}

// Protected chains AuthMiddleware and RequirePermission. With no codes only a
// valid token is required.
func Protected(validator TokenValidator, codes ...string) []gin.HandlerFunc {
	chain := []gin.HandlerFunc{AuthMiddleware(validator)}
	if len(codes) > 0 {
		chain = append(chain, RequirePermission(codes...))
	}
	return chain
}
