package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"authsuite/internal/domain"
	"authsuite/internal/oauth"
	"authsuite/internal/repository"
	"authsuite/internal/service"
)

type memoryUserRepo struct {
	mu    sync.Mutex
	users map[string]domain.UserData
}

func newMemoryUserRepo() *memoryUserRepo {
	return &memoryUserRepo{users: make(map[string]domain.UserData)}
}

func (r *memoryUserRepo) find(match func(domain.UserData) bool) (domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.users {
		if match(d) {
			return domain.ReconstructUser(d)
		}
	}
	return domain.User{}, repository.ErrNotFound
}

func (r *memoryUserRepo) FindByID(_ context.Context, id domain.UserID) (domain.User, error) {
	return r.find(func(d domain.UserData) bool { return d.ID == id.String() })
}

func (r *memoryUserRepo) FindByEmail(_ context.Context, email domain.Email) (domain.User, error) {
	return r.find(func(d domain.UserData) bool { return d.Email == email.String() })
}

func (r *memoryUserRepo) FindByExternalID(_ context.Context, provider, externalID string) (domain.User, error) {
	return r.find(func(d domain.UserData) bool {
		for _, acc := range d.ExternalAccounts {
			if acc.Matches(provider, externalID) {
				return true
			}
		}
		return false
	})
}

func (r *memoryUserRepo) Save(_ context.Context, user domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d := user.Data()
	for id, existing := range r.users {
		if id != d.ID && existing.Email == d.Email {
			return repository.ErrDuplicateEmail
		}
	}
	r.users[d.ID] = d
	return nil
}

func (r *memoryUserRepo) ExistsByEmail(ctx context.Context, email domain.Email) (bool, error) {
	_, err := r.FindByEmail(ctx, email)
	return err == nil, nil
}

func (r *memoryUserRepo) Update(_ context.Context, user domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d := user.Data()
	if _, ok := r.users[d.ID]; !ok {
		return repository.ErrNotFound
	}
	r.users[d.ID] = d
	return nil
}

func (r *memoryUserRepo) Delete(_ context.Context, id domain.UserID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.users, id.String())
	return nil
}

type stubOAuthClient struct {
	info oauth.UserInfo
	err  error
}

func (s stubOAuthClient) Provider() string { return "github" }

func (s stubOAuthClient) AuthURL(state string) string {
	return "https://github.example/authorize?state=" + url.QueryEscape(state)
}

func (s stubOAuthClient) Authenticate(context.Context, string) (oauth.UserInfo, error) {
	return s.info, s.err
}

type testServer struct {
	router     *gin.Engine
	users      *memoryUserRepo
	sessions   *repository.MemorySessionStore
	challenges *service.ChallengeTokens
	totp       *service.TOTPService
}

func newTestServer(t *testing.T, oauthClient oauth.Client) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()
	users := newMemoryUserRepo()
	sessions := repository.NewMemorySessionStore()
	totpSvc := service.NewTOTPService("authsuite-test")
	challenges := service.NewChallengeTokens("test-secret")

	deps := service.Dependencies{
		Logger:     logger,
		Users:      users,
		Sessions:   sessions,
		Hasher:     service.NewPasswordHasher("bcrypt", bcrypt.MinCost),
		Tokens:     service.NewRandomTokenGenerator(32),
		Mfa:        totpSvc,
		SessionTTL: time.Hour,
	}
	uc := AuthUseCases{
		Register:       service.NewRegisterUserUseCase(deps),
		Login:          service.NewLoginUseCase(deps),
		VerifyMfa:      service.NewVerifyMfaUseCase(deps),
		ExternalAuth:   service.NewExternalAuthUseCase(deps),
		Logout:         service.NewLogoutUseCase(deps),
		ChangePassword: service.NewChangePasswordUseCase(deps),
		EnrollMfa:      service.NewEnrollMfaUseCase(deps, totpSvc, challenges),
		ConfirmMfa:     service.NewConfirmMfaUseCase(deps, challenges),
		DisableMfa:     service.NewDisableMfaUseCase(deps),
	}
	var registry *oauth.Registry
	if oauthClient != nil {
		registry = oauth.NewRegistry(oauthClient)
	}
	authH := NewAuthHandler(logger, uc, challenges, registry)
	sessionMW := SessionMiddleware(logger, service.NewValidateSessionUseCase(deps))
	router := NewRouter(logger, authH, NewHealthHandler(logger, nil), sessionMW, nil)

	return &testServer{router: router, users: users, sessions: sessions, challenges: challenges, totp: totpSvc}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	var payload map[string]any
	if rec.Body.Len() > 0 {
		_ = json.Unmarshal(rec.Body.Bytes(), &payload)
	}
	return rec, payload
}

func (s *testServer) register(t *testing.T, email, password string) {
	t.Helper()
	rec, payload := s.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"email": email, "password": password, "firstName": "Ana", "lastName": "Lopez",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d (%v)", rec.Code, payload)
	}
}

func (s *testServer) login(t *testing.T, email, password string) map[string]any {
	t.Helper()
	rec, payload := s.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": email, "password": password})
	if rec.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d (%v)", rec.Code, payload)
	}
	return payload
}

func TestRegisterAndDuplicate(t *testing.T) {
	s := newTestServer(t, nil)
	rec, payload := s.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"email": "Ana@Example.com", "password": "s3cure-pass", "firstName": "Ana", "lastName": "Lopez",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	user, _ := payload["user"].(map[string]any)
	if user["email"] != "ana@example.com" {
		t.Fatalf("unexpected user payload: %v", payload)
	}
	if _, leaked := user["password_hash"]; leaked {
		t.Fatalf("password hash must not be exposed")
	}

	rec, payload = s.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"email": "ana@example.com", "password": "other-pass", "firstName": "Ana", "lastName": "Lopez",
	})
	if rec.Code != http.StatusBadRequest || payload["code"] != "DOMAIN_ERROR" {
		t.Fatalf("expected 400 DOMAIN_ERROR, got %d %v", rec.Code, payload)
	}
	if payload["message"] != "User with this email already exists" {
		t.Fatalf("unexpected message: %v", payload["message"])
	}
}

func TestRegisterRejectsShortPassword(t *testing.T) {
	s := newTestServer(t, nil)
	rec, payload := s.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"email": "ana@example.com", "password": "short", "firstName": "Ana", "lastName": "Lopez",
	})
	if rec.Code != http.StatusBadRequest || payload["message"] != "Password must be at least 8 characters long" {
		t.Fatalf("expected password policy error, got %d %v", rec.Code, payload)
	}
}

func TestLoginSessionLifecycle(t *testing.T) {
	s := newTestServer(t, nil)
	s.register(t, "ana@example.com", "s3cure-pass")

	rec, payload := s.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": "ana@example.com", "password": "wrong-pass"})
	if rec.Code != http.StatusUnauthorized || payload["message"] != "Invalid credentials" {
		t.Fatalf("expected 401 invalid credentials, got %d %v", rec.Code, payload)
	}

	payload = s.login(t, "ana@example.com", "s3cure-pass")
	if payload["type"] != "SUCCESS" {
		t.Fatalf("expected SUCCESS, got %v", payload)
	}
	token, _ := payload["token"].(string)
	if token == "" {
		t.Fatalf("expected session token")
	}

	rec, payload = s.do(t, http.MethodGet, "/auth/me", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from /auth/me, got %d %v", rec.Code, payload)
	}

	rec, _ = s.do(t, http.MethodPost, "/auth/logout", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected logout 200, got %d", rec.Code)
	}
	rec, payload = s.do(t, http.MethodGet, "/auth/me", token, nil)
	if rec.Code != http.StatusUnauthorized || payload["message"] != "Invalid session token" {
		t.Fatalf("expected 401 after logout, got %d %v", rec.Code, payload)
	}
}

func TestProtectedRoutesRequireBearer(t *testing.T) {
	s := newTestServer(t, nil)
	rec, payload := s.do(t, http.MethodGet, "/auth/me", "", nil)
	if rec.Code != http.StatusUnauthorized || payload["code"] != "AUTH_ERROR" {
		t.Fatalf("expected 401 AUTH_ERROR, got %d %v", rec.Code, payload)
	}
	rec, _ = s.do(t, http.MethodGet, "/auth/me", "not-a-real-token", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for malformed token, got %d", rec.Code)
	}
}

func TestMfaFlowOverHTTP(t *testing.T) {
	s := newTestServer(t, nil)
	s.register(t, "ana@example.com", "s3cure-pass")
	token, _ := s.login(t, "ana@example.com", "s3cure-pass")["token"].(string)

	rec, payload := s.do(t, http.MethodPost, "/auth/mfa/enroll", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("enroll: expected 200, got %d %v", rec.Code, payload)
	}
	secret, _ := payload["secret"].(string)
	enrollmentToken, _ := payload["enrollmentToken"].(string)
	code, err := s.totp.Code(secret, time.Now())
	if err != nil {
		t.Fatalf("totp code: %v", err)
	}

	rec, payload = s.do(t, http.MethodPost, "/auth/mfa/confirm", token, map[string]string{"enrollmentToken": enrollmentToken, "code": code})
	if rec.Code != http.StatusOK {
		t.Fatalf("confirm: expected 200, got %d %v", rec.Code, payload)
	}

	payload = s.login(t, "ana@example.com", "s3cure-pass")
	if payload["type"] != "MFA_REQUIRED" || payload["token"] != nil {
		t.Fatalf("expected MFA_REQUIRED without token, got %v", payload)
	}
	mfaToken, _ := payload["mfaToken"].(string)

	rec, payload = s.do(t, http.MethodPost, "/auth/mfa/verify", "", map[string]string{"mfaToken": mfaToken, "code": "abcdef"})
	if rec.Code != http.StatusUnauthorized || payload["message"] != "Invalid MFA code" {
		t.Fatalf("expected invalid code, got %d %v", rec.Code, payload)
	}
	rec, payload = s.do(t, http.MethodPost, "/auth/mfa/verify", "", map[string]string{"mfaToken": "garbage", "code": code})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected invalid challenge, got %d %v", rec.Code, payload)
	}

	code, _ = s.totp.Code(secret, time.Now())
	rec, payload = s.do(t, http.MethodPost, "/auth/mfa/verify", "", map[string]string{"mfaToken": mfaToken, "code": code})
	if rec.Code != http.StatusOK || payload["type"] != "SUCCESS" {
		t.Fatalf("expected SUCCESS after mfa, got %d %v", rec.Code, payload)
	}
}

func TestOAuthFlow(t *testing.T) {
	client := stubOAuthClient{info: oauth.UserInfo{Provider: "github", ExternalID: "42", Email: "octo@example.com", FirstName: "Octo", LastName: "Cat"}}
	s := newTestServer(t, client)

	rec, _ := s.do(t, http.MethodGet, "/auth/oauth/github", "", nil)
	if rec.Code != http.StatusFound {
		t.Fatalf("expected redirect, got %d", rec.Code)
	}
	location, err := url.Parse(rec.Header().Get("Location"))
	if err != nil {
		t.Fatalf("parse location: %v", err)
	}
	state := location.Query().Get("state")
	if state == "" {
		t.Fatalf("expected state in redirect")
	}

	rec, payload := s.do(t, http.MethodGet, "/auth/oauth/github/callback?code=abc&state=forged", "", nil)
	if rec.Code != http.StatusUnauthorized || payload["message"] != "Invalid OAuth state" {
		t.Fatalf("expected invalid state, got %d %v", rec.Code, payload)
	}

	callback := "/auth/oauth/github/callback?code=abc&state=" + url.QueryEscape(state)
	rec, payload = s.do(t, http.MethodGet, callback, "", nil)
	if rec.Code != http.StatusOK || payload["type"] != "SUCCESS" {
		t.Fatalf("expected SUCCESS, got %d %v", rec.Code, payload)
	}
	rec, _ = s.do(t, http.MethodGet, callback, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected repeat callback to succeed, got %d", rec.Code)
	}
	if len(s.users.users) != 1 {
		t.Fatalf("expected a single user, got %d", len(s.users.users))
	}

	rec, payload = s.do(t, http.MethodGet, "/auth/oauth/gitlab", "", nil)
	if rec.Code != http.StatusNotFound || payload["code"] != "NOT_FOUND" {
		t.Fatalf("expected 404 for unknown provider, got %d %v", rec.Code, payload)
	}
}

func TestOAuthExchangeFailure(t *testing.T) {
	s := newTestServer(t, stubOAuthClient{err: errors.New("upstream down")})
	state, _ := s.challenges.IssueOAuthState("github")
	rec, payload := s.do(t, http.MethodGet, "/auth/oauth/github/callback?code=abc&state="+url.QueryEscape(state), "", nil)
	if rec.Code != http.StatusUnauthorized || payload["message"] != "OAuth authentication failed" {
		t.Fatalf("expected 401 oauth failure, got %d %v", rec.Code, payload)
	}
}

func TestChangePasswordRevokesSessions(t *testing.T) {
	s := newTestServer(t, nil)
	s.register(t, "ana@example.com", "s3cure-pass")
	token, _ := s.login(t, "ana@example.com", "s3cure-pass")["token"].(string)

	rec, payload := s.do(t, http.MethodPost, "/auth/password", token, map[string]string{
		"currentPassword": "s3cure-pass", "newPassword": "brand-new-pass",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %v", rec.Code, payload)
	}
	if s.sessions.Len() != 0 {
		t.Fatalf("expected sessions revoked")
	}
	s.login(t, "ana@example.com", "brand-new-pass")
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t, nil)
	rec, payload := s.do(t, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK || payload["status"] != "ok" {
		t.Fatalf("expected ok, got %d %v", rec.Code, payload)
	}
}
