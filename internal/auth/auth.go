// Package auth extracts the caller identity injected by the platform
// gateway. The service trusts the gateway headers; it does not verify
// tokens itself.
package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	HeaderUser = "X-Predmarket-User"
	HeaderRole = "X-Predmarket-Role"
)

const (
	RoleAdmin    = "admin"
	RoleResolver = "resolver"
)

const principalKey = "auth.principal"

// Principal is the authenticated caller as asserted by the gateway.
type Principal struct {
	User string
	Role string
}

func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// CanResolve reports whether the caller may resolve or finalize
// markets. Admins subsume the resolver capability.
func (p Principal) CanResolve() bool {
	return p.Role == RoleResolver || p.Role == RoleAdmin
}

// Middleware parses the gateway identity headers into the gin context.
// Requests without an identity still pass; handlers that need one use
// RequireUser or RequireRole.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		p := Principal{
			User: strings.TrimSpace(c.GetHeader(HeaderUser)),
			Role: strings.ToLower(strings.TrimSpace(c.GetHeader(HeaderRole))),
		}
		c.Set(principalKey, p)
		c.Next()
	}
}

// FromGin returns the principal parsed by Middleware.
func FromGin(c *gin.Context) Principal {
	if v, ok := c.Get(principalKey); ok {
		if p, ok := v.(Principal); ok {
			return p
		}
	}
	return Principal{}
}

// RequireUser aborts with 401 when the gateway asserted no identity.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if FromGin(c).User == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing " + HeaderUser + " header"})
			return
		}
		c.Next()
	}
}

// RequireAdmin aborts with 403 for non-admin callers.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		p := FromGin(c)
		if p.User == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing " + HeaderUser + " header"})
			return
		}
		if !p.IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin role required"})
			return
		}
		c.Next()
	}
}

// RequireResolver aborts with 403 for callers without the resolver
// capability.
func RequireResolver() gin.HandlerFunc {
	return func(c *gin.Context) {
		p := FromGin(c)
		if p.User == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing " + HeaderUser + " header"})
			return
		}
		if !p.CanResolve() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "resolver role required"})
			return
		}
		c.Next()
	}
}
