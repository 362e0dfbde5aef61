package middleware

import (
	"net/http"
	"strings"

	"civic-tracker/internal/models"
	"civic-tracker/pkg/auth"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	ContextUserID   = "user_id"
	ContextUsername = "username"
	ContextRole     = "role"
)

func AuthMiddleware(jwtManager *auth.JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortUnauthorized(c, "Authorization header is required")
			return
		}

		// "Bearer <token>"
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			abortUnauthorized(c, "Invalid authorization header format")
			return
		}

		claims, err := jwtManager.ValidateToken(parts[1])
		if err != nil {
			abortUnauthorized(c, "Invalid token")
			return
		}

		role, ok := models.FromString(claims.Role)
		if !ok {
			abortUnauthorized(c, "Invalid user role")
			return
		}

		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextUsername, claims.Username)
		c.Set(ContextRole, role)

		c.Next()
	}
}

// CurrentActor returns the identity AuthMiddleware stored on the context.
func CurrentActor(c *gin.Context) (models.Actor, bool) {
	userID, ok := c.Get(ContextUserID)
	if !ok {
		return models.Actor{}, false
	}
	id, ok := userID.(primitive.ObjectID)
	if !ok {
		return models.Actor{}, false
	}
	role, _ := c.Get(ContextRole)
	r, ok := role.(models.UserRole)
	if !ok {
		return models.Actor{}, false
	}

	return models.Actor{ID: id, Username: c.GetString(ContextUsername), Role: r}, true
}

func abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error":   "unauthorized",
		"message": message,
	})
}
