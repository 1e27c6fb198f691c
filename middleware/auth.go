package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	jwtmiddleware "github.com/auth0/go-jwt-middleware/v2"
	"github.com/auth0/go-jwt-middleware/v2/jwks"
	"github.com/auth0/go-jwt-middleware/v2/validator"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/kendall-kelly/manuorder-api/config"
	"github.com/kendall-kelly/manuorder-api/logger"
	"go.uber.org/zap"
)

// Keys under which the auth middleware stores request identity
const (
	ContextUserID       = "user_id"
	ContextClaims       = "validated_claims"
	ContextCustomClaims = "custom_claims"
	ContextAccessToken  = "access_token"
	ContextActor        = "actor"
	ContextRequestID    = "request_id"
)

// CustomClaims contains custom data we want from the token.
type CustomClaims struct {
	Role string `json:"https://manuorder.app/role"`
}

// Validate does nothing, the role is checked against the stored profile.
// It satisfies the validator.CustomClaims interface.
func (c CustomClaims) Validate(ctx context.Context) error {
	return nil
}

// Authenticate picks the token verifier for cfg: HS256 with JWT_SECRET when
// it is set, Auth0 otherwise
func Authenticate(cfg *config.Config) (gin.HandlerFunc, error) {
	if cfg.UsesLocalTokens() {
		return EnsureValidLocalToken(cfg.JWTSecret), nil
	}
	return EnsureValidToken(cfg)
}

// EnsureValidToken is a middleware that will check the validity of our JWT.
func EnsureValidToken(cfg *config.Config) (gin.HandlerFunc, error) {
	if cfg.Auth0Domain == "" || cfg.Auth0Audience == "" {
		return nil, errors.New("AUTH0_DOMAIN and AUTH0_AUDIENCE are required without JWT_SECRET")
	}

	issuerURL, err := url.Parse("https://" + cfg.Auth0Domain + "/")
	if err != nil {
		return nil, fmt.Errorf("failed to parse the issuer url: %w", err)
	}

	provider := jwks.NewCachingProvider(issuerURL, 5*time.Minute)

	jwtValidator, err := validator.New(
		provider.KeyFunc,
		validator.RS256,
		issuerURL.String(),
		[]string{cfg.Auth0Audience},
		validator.WithCustomClaims(
			func() validator.CustomClaims {
				return &CustomClaims{}
			},
		),
		validator.WithAllowedClockSkew(time.Minute),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to set up the jwt validator: %w", err)
	}

	errorHandler := func(w http.ResponseWriter, r *http.Request, err error) {
		logger.Warn("encountered error while validating JWT",
			zap.String("path", r.URL.Path),
			zap.Error(err))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		if _, writeErr := w.Write([]byte(`{"success":false,"error":{"code":"INVALID_TOKEN","message":"Failed to validate JWT."}}`)); writeErr != nil {
			logger.Warn("failed to write error response", zap.Error(writeErr))
		}
	}

	middleware := jwtmiddleware.New(
		jwtValidator.ValidateToken,
		jwtmiddleware.WithErrorHandler(errorHandler),
	)

	return func(c *gin.Context) {
		validated := false
		var handler http.HandlerFunc = func(w http.ResponseWriter, r *http.Request) {
			validated = true
			token := r.Context().Value(jwtmiddleware.ContextKey{}).(*validator.ValidatedClaims)
			setIdentity(c, token)
			c.Next()
		}

		// Use the JWT middleware to check the token
		middleware.CheckJWT(handler).ServeHTTP(c.Writer, c.Request)
		if !validated {
			// errorHandler already wrote the response
			c.Abort()
		}
	}, nil
}

// LocalClaims are the claims of tokens signed with JWT_SECRET
type LocalClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

const localIssuer = "manuorder-api"

// IssueLocalToken signs an HS256 token for subject, valid for ttl
func IssueLocalToken(secret, subject, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := LocalClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    localIssuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// EnsureValidLocalToken verifies HS256 tokens signed with secret. Used in
// development and tests where no Auth0 tenant is available.
func EnsureValidLocalToken(secret string) gin.HandlerFunc {
	keyFunc := func(*jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(localIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(time.Minute),
	)

	return func(c *gin.Context) {
		raw, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			abortUnauthorized(c, "INVALID_TOKEN", "Failed to validate JWT.")
			return
		}

		var claims LocalClaims
		if _, err := parser.ParseWithClaims(raw, &claims, keyFunc); err != nil || claims.Subject == "" {
			logger.Warn("encountered error while validating local JWT",
				zap.String("path", c.Request.URL.Path),
				zap.Error(err))
			abortUnauthorized(c, "INVALID_TOKEN", "Failed to validate JWT.")
			return
		}

		var expiry int64
		if claims.ExpiresAt != nil {
			expiry = claims.ExpiresAt.Unix()
		}
		setIdentity(c, &validator.ValidatedClaims{
			RegisteredClaims: validator.RegisteredClaims{
				Issuer:  claims.Issuer,
				Subject: claims.Subject,
				Expiry:  expiry,
			},
			CustomClaims: &CustomClaims{Role: claims.Role},
		})
		c.Next()
	}
}

func setIdentity(c *gin.Context, token *validator.ValidatedClaims) {
	c.Set(ContextUserID, token.RegisteredClaims.Subject)
	c.Set(ContextClaims, token)
	if custom, ok := token.CustomClaims.(*CustomClaims); ok {
		c.Set(ContextCustomClaims, custom)
	}
	if raw, ok := bearerToken(c.GetHeader("Authorization")); ok {
		c.Set(ContextAccessToken, raw)
	}
}

func bearerToken(header string) (string, bool) {
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return parts[1], true
}

// GetUserID extracts the user ID from the Gin context
func GetUserID(c *gin.Context) (string, error) {
	userID, exists := c.Get(ContextUserID)
	if !exists {
		return "", &AuthError{Code: "MISSING_USER_ID", Message: "User ID not found in context"}
	}

	userIDStr, ok := userID.(string)
	if !ok || userIDStr == "" {
		return "", &AuthError{Code: "INVALID_USER_ID", Message: "User ID is not a string"}
	}

	return userIDStr, nil
}

// GetClaims extracts the validated JWT claims from the Gin context
func GetClaims(c *gin.Context) (*validator.ValidatedClaims, error) {
	claims, exists := c.Get(ContextClaims)
	if !exists {
		return nil, &AuthError{Code: "MISSING_CLAIMS", Message: "Claims not found in context"}
	}

	validatedClaims, ok := claims.(*validator.ValidatedClaims)
	if !ok {
		return nil, &AuthError{Code: "INVALID_CLAIMS", Message: "Claims are not in the expected format"}
	}

	return validatedClaims, nil
}

// GetCustomClaims returns the custom claims of the token, empty when absent
func GetCustomClaims(c *gin.Context) *CustomClaims {
	if v, ok := c.Get(ContextCustomClaims); ok {
		if claims, ok := v.(*CustomClaims); ok {
			return claims
		}
	}
	return &CustomClaims{}
}

// GetAccessToken returns the raw bearer token of the request
func GetAccessToken(c *gin.Context) string {
	return c.GetString(ContextAccessToken)
}

// AuthError represents an authentication error
type AuthError struct {
	Code    string
	Message string
}

func (e *AuthError) Error() string {
	return e.Message
}

func errorBody(code, message string) gin.H {
	return gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	}
}

func abortUnauthorized(c *gin.Context, code, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody(code, message))
}
