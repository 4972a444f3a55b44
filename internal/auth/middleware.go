package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"faceattend/internal/metrics"
)

const identityKey = "identity"

// RequireAuth enforces a valid bearer token and binds the verified Identity
// to the request context.
func RequireAuth(v Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		ident, ok := authenticate(c, v)
		if !ok {
			return
		}
		c.Set(identityKey, ident)
		c.Next()
	}
}

// RequireAdmin enforces a valid bearer token whose subject has the admin
// role in the user store. 401 and 403 are kept distinct: a bad token is
// unauthenticated, a valid identity without the role is forbidden.
func RequireAdmin(v Verifier, roles RoleLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		ident, ok := authenticate(c, v)
		if !ok {
			return
		}
		role, err := roles.GetUserRole(c.Request.Context(), ident.SubjectID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"success": false, "error": "role lookup failed"})
			return
		}
		if role != "admin" {
			metrics.AuthFailures.WithLabelValues("forbidden").Inc()
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"success": false, "error": ErrForbidden.Error()})
			return
		}
		ident.Role = role
		c.Set(identityKey, ident)
		c.Next()
	}
}

// IdentityFrom returns the Identity bound by RequireAuth or RequireAdmin.
func IdentityFrom(c *gin.Context) Identity {
	ident, _ := c.Get(identityKey)
	id, _ := ident.(Identity)
	return id
}

func authenticate(c *gin.Context, v Verifier) (Identity, bool) {
	token, ok := bearerToken(c.GetHeader("Authorization"))
	if !ok {
		metrics.AuthFailures.WithLabelValues("unauthenticated").Inc()
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Token is missing"})
		return Identity{}, false
	}
	ident, err := v.Verify(c.Request.Context(), token)
	if err != nil {
		metrics.AuthFailures.WithLabelValues("unauthenticated").Inc()
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Invalid token"})
		return Identity{}, false
	}
	return ident, true
}

// bearerToken extracts the token from an Authorization header. Absence or a
// malformed prefix fails before any verifier call.
func bearerToken(header string) (string, bool) {
	if header == "" || !strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return "", false
	}
	token := strings.TrimSpace(header[len("bearer "):])
	return token, token != ""
}
