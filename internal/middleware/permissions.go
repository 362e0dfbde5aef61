package middleware

import (
	"net/http"

	"civic-tracker/internal/models"

	"github.com/gin-gonic/gin"
)

// RequireOperation rejects requests whose role may never perform op.
// Ownership checks stay in the services, which see the resource.
func RequireOperation(op models.Operation) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := CurrentActor(c)
		if !ok {
			abortUnauthorized(c, "User not authenticated")
			return
		}

		if !models.Allow(actor.Role, op, false, false) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":     "authorization_error",
				"message":   "Insufficient permissions",
				"required":  op,
				"user_role": actor.Role,
			})
			return
		}

		c.Next()
	}
}

// RequireAnyRole lets the request through when the actor has one of roles.
func RequireAnyRole(roles ...models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := CurrentActor(c)
		if !ok {
			abortUnauthorized(c, "User not authenticated")
			return
		}

		for _, allowed := range roles {
			if actor.Role == allowed {
				c.Next()
				return
			}
		}

		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"error":          "authorization_error",
			"message":        "Insufficient permissions",
			"required_roles": roles,
			"user_role":      actor.Role,
		})
	}
}
