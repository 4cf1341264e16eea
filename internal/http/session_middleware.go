package http

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"authsuite/internal/service"
)

const (
	authSessionKey = "auth_session"
	authTokenKey   = "auth_token"
)

// SessionValidator resuelve un token de sesion; lo implementa ValidateSessionUseCase.
type SessionValidator interface {
	Execute(ctx context.Context, token string) (service.AuthResult, error)
}

// SessionMiddleware valida el Bearer token y guarda usuario y sesion en el contexto.
func SessionMiddleware(logger *zap.Logger, validator SessionValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			respondError(c, logger, errMissingSession)
			return
		}
		result, err := validator.Execute(c.Request.Context(), token)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.Set(authSessionKey, result)
		c.Set(authTokenKey, token)
		c.Next()
	}
}

// GetAuthSession obtiene el usuario y la sesion autenticados desde el contexto.
func GetAuthSession(c *gin.Context) (service.AuthResult, bool) {
	val, ok := c.Get(authSessionKey)
	if !ok {
		return service.AuthResult{}, false
	}
	result, ok := val.(service.AuthResult)
	return result, ok
}

func bearerToken(c *gin.Context) (string, bool) {
	header := strings.TrimSpace(c.GetHeader("Authorization"))
	if len(header) < len("Bearer ") || !strings.EqualFold(header[:len("Bearer ")], "bearer ") {
		return "", false
	}
	token := strings.TrimSpace(header[len("Bearer "):])
	return token, token != ""
}
