package services

import (
	"context"
	"errors"
	"strings"

	"github.com/kendall-kelly/manuorder-api/apperror"
	"github.com/kendall-kelly/manuorder-api/models"
	"github.com/kendall-kelly/manuorder-api/repository"
)

// ProvisionInput carries the verified identity of a caller without a profile
type ProvisionInput struct {
	Auth0ID     string
	AccessToken string
	Role        models.Role
	// Name and Email are used when no identity provider lookup is configured
	Name  string
	Email string
}

// UserService manages the local profiles of authenticated callers
type UserService interface {
	Provision(ctx context.Context, input ProvisionInput) (*models.User, error)
	Profile(ctx context.Context, auth0ID string) (*models.User, error)
	UpdateProfile(ctx context.Context, auth0ID, name, email string) (*models.User, error)
}

type userService struct {
	users    repository.UserRepository
	userInfo UserInfoProvider
}

var userServiceInstance UserService

// NewUserService creates a user service. userInfo may be nil, profiles are
// then built from the request.
func NewUserService(users repository.UserRepository, userInfo UserInfoProvider) UserService {
	return &userService{users: users, userInfo: userInfo}
}

// InitUserService initializes the global user service
func InitUserService(users repository.UserRepository, userInfo UserInfoProvider) UserService {
	userServiceInstance = NewUserService(users, userInfo)
	return userServiceInstance
}

// GetUserService returns the initialized user service instance
func GetUserService() UserService {
	return userServiceInstance
}

// SetUserService sets the user service instance (primarily for testing)
func SetUserService(service UserService) {
	userServiceInstance = service
}

func (s *userService) Provision(ctx context.Context, input ProvisionInput) (*models.User, error) {
	if input.Auth0ID == "" {
		return nil, apperror.Unauthorized("UNAUTHORIZED", "Could not extract user ID from token")
	}

	name, email := strings.TrimSpace(input.Name), strings.TrimSpace(input.Email)
	if s.userInfo != nil {
		info, err := s.userInfo.GetUserInfo(ctx, input.AccessToken)
		if err != nil {
			return nil, apperror.Wrap(apperror.KindInternal, "AUTH0_ERROR", "Failed to fetch user information from Auth0", err)
		}
		name, email = info.Name, info.Email
	}
	if email == "" {
		return nil, apperror.Validation("MISSING_EMAIL", "Email not provided")
	}
	if name == "" {
		return nil, apperror.Validation("MISSING_NAME", "Name not provided")
	}

	role := input.Role
	if !role.IsValid() {
		role = models.RoleCustomer
	}

	user := &models.User{
		Auth0ID: input.Auth0ID,
		Name:    name,
		Email:   email,
		Role:    role,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperror.Conflict("USER_EXISTS", "A user with this Auth0 ID or email already exists")
		}
		return nil, err
	}
	return user, nil
}

func (s *userService) Profile(ctx context.Context, auth0ID string) (*models.User, error) {
	user, err := s.users.FindByAuth0ID(ctx, auth0ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperror.NotFound("USER_NOT_FOUND", "User profile not found. Please create a profile first.")
		}
		return nil, err
	}
	return user, nil
}

func (s *userService) UpdateProfile(ctx context.Context, auth0ID, name, email string) (*models.User, error) {
	user, err := s.Profile(ctx, auth0ID)
	if err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})
	if name = strings.TrimSpace(name); name != "" {
		updates["name"] = name
	}
	if email = strings.TrimSpace(email); email != "" {
		updates["email"] = email
	}

	if err := s.users.Update(ctx, user, updates); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperror.Conflict("EMAIL_EXISTS", "A user with this email already exists")
		}
		return nil, err
	}
	return user, nil
}
