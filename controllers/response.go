package controllers

import (
	"net/http"

	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/manuorder-api/apperror"
	"github.com/kendall-kelly/manuorder-api/logger"
	"github.com/kendall-kelly/manuorder-api/middleware"
	"github.com/kendall-kelly/manuorder-api/policy"
	"go.uber.org/zap"
)

func respondOK(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{
		"success": true,
		"data":    data,
	})
}

// authorizeRole runs the role-level policy check before the request is
// parsed, so a caller without the role gets 401/403 and never a validation
// error. Ownership is still checked by the service once the order is loaded.
func authorizeRole(c *gin.Context, op string, action policy.Action) bool {
	if err := policy.Authorize(middleware.GetActor(c), action, nil); err != nil {
		respondError(c, op, err)
		return false
	}
	return true
}

// respondError writes the error envelope for err. Only the code and message
// of the error reach the client.
func respondError(c *gin.Context, op string, err error) {
	appErr := apperror.From(err)

	fields := []zap.Field{
		zap.String("op", op),
		zap.String("kind", appErr.Kind.String()),
		zap.String("code", appErr.Code),
		zap.String("request_id", middleware.GetRequestID(c)),
		zap.Error(err),
	}
	if id := c.Param("id"); id != "" {
		fields = append(fields, zap.String("order_id", id))
	}
	if actor := middleware.GetActor(c); actor != nil {
		fields = append(fields, zap.String("actor_id", actor.UserID))
	}

	switch appErr.Kind {
	case apperror.KindInternal, apperror.KindUnavailable:
		logger.Error("operation failed", fields...)
	default:
		logger.Info("operation rejected", fields...)
	}

	if appErr.Kind == apperror.KindInternal {
		if hub := sentrygin.GetHubFromContext(c); hub != nil {
			hub.CaptureException(err)
		}
	}

	body := gin.H{
		"code":    appErr.Code,
		"message": appErr.Message,
	}
	if appErr.Retryable() {
		body["retryable"] = true
	}
	c.AbortWithStatusJSON(apperror.HTTPStatus(appErr.Kind), gin.H{
		"success": false,
		"error":   body,
	})
}

// respondBindError reports a malformed request body or query
func respondBindError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
		"success": false,
		"error": gin.H{
			"code":    "VALIDATION_ERROR",
			"message": "Invalid request data",
			"details": err.Error(),
		},
	})
}
