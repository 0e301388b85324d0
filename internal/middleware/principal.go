package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	// PrincipalHeader carries the id authenticated by the upstream gateway.
	PrincipalHeader = "X-Principal-ID"

	principalKey = "principalID"
)

// RequirePrincipal rejects requests without a principal and stores it on the context.
func RequirePrincipal() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(PrincipalHeader)
		if id == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "principal required"})
			return
		}
		c.Set(principalKey, id)
		c.Next()
	}
}

// Principal returns the principal stored by RequirePrincipal.
func Principal(c *gin.Context) string {
	return c.GetString(principalKey)
}

// RequireAdmin allows only the listed principals. It must run after RequirePrincipal.
func RequireAdmin(principals []string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(principals))
	for _, p := range principals {
		allowed[p] = struct{}{}
	}
	return func(c *gin.Context) {
		if _, ok := allowed[Principal(c)]; !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "operator access required"})
			return
		}
		c.Next()
	}
}
