package testutil

import (
	"github.com/auth0/go-jwt-middleware/v2/validator"
	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/manuorder-api/middleware"
)

// MockValidatedClaims creates a mock ValidatedClaims for testing
func MockValidatedClaims(subject, role string) *validator.ValidatedClaims {
	return &validator.ValidatedClaims{
		RegisteredClaims: validator.RegisteredClaims{
			Issuer:  "https://test.auth0.com/",
			Subject: subject,
		},
		CustomClaims: &middleware.CustomClaims{
			Role: role,
		},
	}
}

// MockAuth simulates a verified token for auth0ID. An empty auth0ID leaves
// the request unauthenticated.
func MockAuth(auth0ID, role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if auth0ID != "" {
			claims := MockValidatedClaims(auth0ID, role)
			c.Set(middleware.ContextUserID, auth0ID)
			c.Set(middleware.ContextAccessToken, "mock-token")
			c.Set(middleware.ContextClaims, claims)
			c.Set(middleware.ContextCustomClaims, claims.CustomClaims)
		}
		c.Next()
	}
}
