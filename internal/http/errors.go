package http

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"authsuite/internal/apperr"
)

var (
	errInvalidRequest      = apperr.Validation("Invalid request body")
	errMissingSession      = apperr.Auth("Missing session token")
	errInvalidMfaChallenge = apperr.Auth("Invalid or expired MFA challenge")
	errInvalidOAuthState   = apperr.Auth("Invalid OAuth state")
	errOAuthDenied         = apperr.Auth("OAuth authorization was denied")
	errOAuthFailed         = apperr.Auth("OAuth authentication failed")
)

// respondError traduce cualquier error a {error, message, code} con el status de su Kind.
// Los errores de infraestructura se loguean y salen con mensaje generico.
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	appErr := apperr.Normalize(err)
	if appErr.Kind == apperr.KindInfra {
		logger.Error("request failed",
			zap.String("path", c.Request.URL.Path),
			zap.Error(err),
		)
	}
	c.AbortWithStatusJSON(appErr.Status(), gin.H{
		"error":   string(appErr.Kind),
		"message": appErr.PublicMessage(),
		"code":    string(appErr.Kind),
	})
}
