package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// NewRouter configura el router de Gin con middlewares y rutas.
func NewRouter(
	logger *zap.Logger,
	authH *AuthHandler,
	healthH *HealthHandler,
	sessionMW gin.HandlerFunc,
	metricsHandler http.Handler,
) *gin.Engine {
	r := gin.New()

	// Middlewares basicos: logging, recovery y JSON content-type.
	r.Use(zapLoggerMiddleware(logger), gin.Recovery())

	r.GET("/healthz", jsonContentTypeMiddleware(), healthH.Healthz)
	if metricsHandler != nil {
		r.GET("/metrics", gin.WrapH(metricsHandler))
	}

	auth := r.Group("/auth", jsonContentTypeMiddleware())
	auth.POST("/register", authH.Register)
	auth.POST("/login", authH.Login)
	auth.POST("/mfa/verify", authH.VerifyMfa)
	auth.GET("/oauth/:provider", authH.OAuthStart)
	auth.GET("/oauth/:provider/callback", authH.OAuthCallback)

	protected := auth.Group("", sessionMW)
	protected.GET("/me", authH.Me)
	protected.POST("/logout", authH.Logout)
	protected.POST("/password", authH.ChangePassword)
	protected.POST("/mfa/enroll", authH.EnrollMfa)
	protected.POST("/mfa/confirm", authH.ConfirmMfa)
	protected.POST("/mfa/disable", authH.DisableMfa)

	return r
}

// zapLoggerMiddleware crea un middleware simple de logging con zap.
func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

// jsonContentTypeMiddleware fuerza Content-Type: application/json en responses.
func jsonContentTypeMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Content-Type", "application/json")
		c.Next()
	}
}
