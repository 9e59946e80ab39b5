package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"catalog-service/internal/models"
)

const actorContextKey = "actor"

// ActorContext resolves the calling identity from the gateway headers and
// stores it on the request context. Requests without identity headers pass
// through as anonymous customers; role checks happen in the services.
func ActorContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := models.Actor{
			ID:   c.GetHeader("X-User-ID"),
			Role: c.GetHeader("X-User-Role"),
		}
		if actor.Role == "" {
			actor.Role = models.RoleCustomer
		}
		c.Set(actorContextKey, actor)
		c.Next()
	}
}

// GetActor returns the actor resolved by ActorContext.
func GetActor(c *gin.Context) models.Actor {
	if val, ok := c.Get(actorContextKey); ok {
		if actor, ok := val.(models.Actor); ok {
			return actor
		}
	}
	return models.Actor{Role: models.RoleCustomer}
}

// RequireAdmin rejects requests whose actor does not carry the admin role.
// Used on mutating routes so unauthenticated traffic fails at the edge.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !GetActor(c).IsAdmin() {
			c.JSON(http.StatusForbidden, models.ErrorResponse{
				Success: false,
				Error: models.Error{
					Code:    "FORBIDDEN",
					Message: "Admin role required",
				},
			})
			c.Abort()
			return
		}
		c.Next()
	}
}
