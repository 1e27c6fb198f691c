package controllers

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/manuorder-api/middleware"
	"github.com/kendall-kelly/manuorder-api/models"
	"github.com/kendall-kelly/manuorder-api/services"
)

// CreateUserRequest carries profile data when no identity provider lookup
// is configured. The body is optional otherwise.
type CreateUserRequest struct {
	Name  string `json:"name"`
	Email string `json:"email" binding:"omitempty,email"`
}

// UpdateUserRequest represents the request body for updating a user profile
type UpdateUserRequest struct {
	Name  string `json:"name" binding:"omitempty"`
	Email string `json:"email" binding:"omitempty,email"`
}

// CreateUser handles POST /api/v1/users - creates the caller's local profile
func CreateUser(c *gin.Context) {
	auth0ID, err := middleware.GetUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "UNAUTHORIZED",
				"message": "Could not extract user ID from token",
			},
		})
		return
	}

	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		respondBindError(c, err)
		return
	}

	user, err := services.GetUserService().Provision(c.Request.Context(), services.ProvisionInput{
		Auth0ID:     auth0ID,
		AccessToken: middleware.GetAccessToken(c),
		Role:        models.Role(strings.ToUpper(middleware.GetCustomClaims(c).Role)),
		Name:        req.Name,
		Email:       req.Email,
	})
	if err != nil {
		respondError(c, "createUser", err)
		return
	}
	respondOK(c, http.StatusCreated, user)
}

// GetMyProfile handles GET /api/v1/users/me - gets current user's profile
func GetMyProfile(c *gin.Context) {
	auth0ID, err := middleware.GetUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "UNAUTHORIZED",
				"message": "Could not extract user information",
			},
		})
		return
	}

	user, err := services.GetUserService().Profile(c.Request.Context(), auth0ID)
	if err != nil {
		respondError(c, "getProfile", err)
		return
	}
	respondOK(c, http.StatusOK, user)
}

// UpdateMyProfile handles PUT /api/v1/users/me - updates current user's profile
func UpdateMyProfile(c *gin.Context) {
	auth0ID, err := middleware.GetUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "UNAUTHORIZED",
				"message": "Could not extract user information",
			},
		})
		return
	}

	var req UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	user, err := services.GetUserService().UpdateProfile(c.Request.Context(), auth0ID, req.Name, req.Email)
	if err != nil {
		respondError(c, "updateProfile", err)
		return
	}
	respondOK(c, http.StatusOK, user)
}
