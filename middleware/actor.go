package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/manuorder-api/logger"
	"github.com/kendall-kelly/manuorder-api/policy"
	"github.com/kendall-kelly/manuorder-api/repository"
	"go.uber.org/zap"
)

// RequireActor resolves the token subject to a stored profile. Requests
// from identities without a profile are rejected with PROFILE_NOT_FOUND.
func RequireActor(users repository.UserRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth0ID, err := GetUserID(c)
		if err != nil {
			abortUnauthorized(c, "UNAUTHORIZED", "Could not extract user ID from token")
			return
		}

		user, err := users.FindByAuth0ID(c.Request.Context(), auth0ID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				abortUnauthorized(c, "PROFILE_NOT_FOUND", "User profile not found. Please create a profile first.")
				return
			}
			logger.Error("failed to load user profile", zap.String("auth0_id", auth0ID), zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, errorBody("DATABASE_ERROR", "Failed to retrieve user"))
			return
		}

		c.Set(ContextActor, &policy.Actor{
			UserID: user.ID,
			Role:   user.Role,
			Name:   user.Name,
		})
		c.Next()
	}
}

// GetActor returns the actor resolved by RequireActor, nil when absent
func GetActor(c *gin.Context) *policy.Actor {
	if v, ok := c.Get(ContextActor); ok {
		if actor, ok := v.(*policy.Actor); ok {
			return actor
		}
	}
	return nil
}
