package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"authsuite/internal/apperr"
	"authsuite/internal/domain"
	"authsuite/internal/oauth"
	"authsuite/internal/service"
)

// AuthUseCases agrupa los casos de uso que expone AuthHandler.
type AuthUseCases struct {
	Register       *service.RegisterUserUseCase
	Login          *service.LoginUseCase
	VerifyMfa      *service.VerifyMfaUseCase
	ExternalAuth   *service.ExternalAuthUseCase
	Logout         *service.LogoutUseCase
	ChangePassword *service.ChangePasswordUseCase
	EnrollMfa      *service.EnrollMfaUseCase
	ConfirmMfa     *service.ConfirmMfaUseCase
	DisableMfa     *service.DisableMfaUseCase
}

// AuthHandler mantiene dependencias para los endpoints de autenticacion.
type AuthHandler struct {
	logger     *zap.Logger
	uc         AuthUseCases
	challenges *service.ChallengeTokens
	providers  *oauth.Registry
}

// NewAuthHandler crea una instancia de AuthHandler con dependencias necesarias.
func NewAuthHandler(logger *zap.Logger, uc AuthUseCases, challenges *service.ChallengeTokens, providers *oauth.Registry) *AuthHandler {
	if providers == nil {
		providers = oauth.NewRegistry()
	}
	return &AuthHandler{
		logger:     logger,
		uc:         uc,
		challenges: challenges,
		providers:  providers,
	}
}

type sessionResponse struct {
	Type      string      `json:"type"`
	Token     string      `json:"token"`
	User      domain.User `json:"user"`
	ExpiresAt time.Time   `json:"expiresAt"`
}

type mfaRequiredResponse struct {
	Type      string    `json:"type"`
	MfaToken  string    `json:"mfaToken"`
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func newSessionResponse(result service.AuthResult) sessionResponse {
	return sessionResponse{
		Type:      "SUCCESS",
		Token:     result.Session.Token().String(),
		User:      result.User,
		ExpiresAt: result.Session.ExpiresAt(),
	}
}

func requestMeta(c *gin.Context) service.RequestMeta {
	return service.RequestMeta{IP: c.ClientIP(), UserAgent: c.Request.UserAgent()}
}

// Register maneja POST /auth/register.
func (h *AuthHandler) Register(c *gin.Context) {
	var req struct {
		Email     string `json:"email"`
		Password  string `json:"password"`
		FirstName string `json:"firstName"`
		LastName  string `json:"lastName"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid register request", zap.Error(err))
		respondError(c, h.logger, errInvalidRequest)
		return
	}

	user, err := h.uc.Register.Execute(c.Request.Context(), service.RegisterInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Meta:      requestMeta(c),
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user": user})
}

// Login maneja POST /auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid login request", zap.Error(err))
		respondError(c, h.logger, errInvalidRequest)
		return
	}

	out, err := h.uc.Login.Execute(c.Request.Context(), service.LoginInput{
		Email:    req.Email,
		Password: req.Password,
		Meta:     requestMeta(c),
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if out.MfaRequired {
		token, expiresAt, err := h.challenges.IssueMfaChallenge(out.User.ID())
		if err != nil {
			respondError(c, h.logger, apperr.Infra(err))
			return
		}
		c.JSON(http.StatusOK, mfaRequiredResponse{
			Type:      "MFA_REQUIRED",
			MfaToken:  token,
			Email:     out.User.Email().String(),
			ExpiresAt: expiresAt,
		})
		return
	}
	c.JSON(http.StatusOK, newSessionResponse(out.AuthResult))
}

// VerifyMfa maneja POST /auth/mfa/verify.
func (h *AuthHandler) VerifyMfa(c *gin.Context) {
	var req struct {
		MfaToken string `json:"mfaToken" binding:"required"`
		Code     string `json:"code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid mfa verify request", zap.Error(err))
		respondError(c, h.logger, errInvalidRequest)
		return
	}
	userID, err := h.challenges.ParseMfaChallenge(req.MfaToken)
	if err != nil {
		respondError(c, h.logger, errInvalidMfaChallenge)
		return
	}

	result, err := h.uc.VerifyMfa.Execute(c.Request.Context(), service.VerifyMfaInput{
		UserID: userID,
		Code:   req.Code,
		Meta:   requestMeta(c),
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, newSessionResponse(result))
}

// OAuthStart maneja GET /auth/oauth/:provider.
func (h *AuthHandler) OAuthStart(c *gin.Context) {
	client, err := h.providers.Get(c.Param("provider"))
	if err != nil {
		respondError(c, h.logger, apperr.NotFound("OAuth provider", c.Param("provider")))
		return
	}
	state, err := h.challenges.IssueOAuthState(client.Provider())
	if err != nil {
		respondError(c, h.logger, apperr.Infra(err))
		return
	}
	c.Redirect(http.StatusFound, client.AuthURL(state))
}

// OAuthCallback maneja GET /auth/oauth/:provider/callback.
func (h *AuthHandler) OAuthCallback(c *gin.Context) {
	client, err := h.providers.Get(c.Param("provider"))
	if err != nil {
		respondError(c, h.logger, apperr.NotFound("OAuth provider", c.Param("provider")))
		return
	}
	if denied := c.Query("error"); denied != "" {
		h.logger.Warn("oauth authorization denied", zap.String("provider", client.Provider()), zap.String("reason", denied))
		respondError(c, h.logger, errOAuthDenied)
		return
	}
	if err := h.challenges.VerifyOAuthState(c.Query("state"), client.Provider()); err != nil {
		respondError(c, h.logger, errInvalidOAuthState)
		return
	}
	code := c.Query("code")
	if code == "" {
		respondError(c, h.logger, errInvalidRequest)
		return
	}

	info, err := client.Authenticate(c.Request.Context(), code)
	if err != nil {
		h.logger.Warn("oauth exchange failed", zap.String("provider", client.Provider()), zap.Error(err))
		respondError(c, h.logger, errOAuthFailed)
		return
	}

	result, err := h.uc.ExternalAuth.Execute(c.Request.Context(), service.ExternalAuthInput{
		Provider:   info.Provider,
		ExternalID: info.ExternalID,
		Email:      info.Email,
		FirstName:  info.FirstName,
		LastName:   info.LastName,
		Meta:       requestMeta(c),
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, newSessionResponse(result))
}

// Me maneja GET /auth/me.
func (h *AuthHandler) Me(c *gin.Context) {
	auth, ok := GetAuthSession(c)
	if !ok {
		respondError(c, h.logger, errMissingSession)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": auth.User, "expiresAt": auth.Session.ExpiresAt()})
}

// Logout maneja POST /auth/logout.
func (h *AuthHandler) Logout(c *gin.Context) {
	token := c.GetString(authTokenKey)
	if token == "" {
		respondError(c, h.logger, errMissingSession)
		return
	}
	if err := h.uc.Logout.Execute(c.Request.Context(), service.LogoutInput{Token: token, Meta: requestMeta(c)}); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "logged_out"})
}

// ChangePassword maneja POST /auth/password.
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	auth, ok := GetAuthSession(c)
	if !ok {
		respondError(c, h.logger, errMissingSession)
		return
	}
	var req struct {
		CurrentPassword string `json:"currentPassword" binding:"required"`
		NewPassword     string `json:"newPassword" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid change password request", zap.Error(err))
		respondError(c, h.logger, errInvalidRequest)
		return
	}
	err := h.uc.ChangePassword.Execute(c.Request.Context(), service.ChangePasswordInput{
		UserID:          auth.User.ID().String(),
		CurrentPassword: req.CurrentPassword,
		NewPassword:     req.NewPassword,
		Meta:            requestMeta(c),
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "password_changed"})
}

// EnrollMfa maneja POST /auth/mfa/enroll.
func (h *AuthHandler) EnrollMfa(c *gin.Context) {
	auth, ok := GetAuthSession(c)
	if !ok {
		respondError(c, h.logger, errMissingSession)
		return
	}
	out, err := h.uc.EnrollMfa.Execute(c.Request.Context(), auth.User.ID().String())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"secret":          out.Secret,
		"otpauthUrl":      out.OTPAuthURL,
		"enrollmentToken": out.EnrollmentToken,
	})
}

// ConfirmMfa maneja POST /auth/mfa/confirm.
func (h *AuthHandler) ConfirmMfa(c *gin.Context) {
	auth, ok := GetAuthSession(c)
	if !ok {
		respondError(c, h.logger, errMissingSession)
		return
	}
	var req struct {
		EnrollmentToken string `json:"enrollmentToken" binding:"required"`
		Code            string `json:"code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid mfa confirm request", zap.Error(err))
		respondError(c, h.logger, errInvalidRequest)
		return
	}
	user, err := h.uc.ConfirmMfa.Execute(c.Request.Context(), service.ConfirmMfaInput{
		UserID:          auth.User.ID().String(),
		EnrollmentToken: req.EnrollmentToken,
		Code:            req.Code,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// DisableMfa maneja POST /auth/mfa/disable.
func (h *AuthHandler) DisableMfa(c *gin.Context) {
	auth, ok := GetAuthSession(c)
	if !ok {
		respondError(c, h.logger, errMissingSession)
		return
	}
	var req struct {
		Code string `json:"code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid mfa disable request", zap.Error(err))
		respondError(c, h.logger, errInvalidRequest)
		return
	}
	user, err := h.uc.DisableMfa.Execute(c.Request.Context(), service.DisableMfaInput{
		UserID: auth.User.ID().String(),
		Code:   req.Code,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}
