package domain

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"authsuite/internal/apperr"
)

const (
	testUserID = "0b6f9a52-6f2b-4c1e-9d0e-3a8f9d7b2c11"
	testHash   = "$argon2id$v=19$m=65536,t=1,p=4$c2FsdHNhbHRzYWx0c2FsdA$aGFzaGhhc2hoYXNoaGFzaGhhc2hoYXNoaGFzaGhhc2g"
	testToken  = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"
)

var baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestUser(t *testing.T) User {
	t.Helper()
	user, err := NewUser(NewUserParams{
		ID:           testUserID,
		Email:        " Ana@Example.COM ",
		PasswordHash: testHash,
		FirstName:    " Ana ",
		LastName:     "Gomez",
	}, baseTime)
	if err != nil {
		t.Fatalf("new user: %v", err)
	}
	return user
}

func TestEmailNormalization(t *testing.T) {
	email, err := NewEmail("  User.Name@Example.COM ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if email.String() != "user.name@example.com" {
		t.Fatalf("expected normalized email, got %q", email.String())
	}
	if email.LocalPart() != "user.name" || email.Domain() != "example.com" {
		t.Fatalf("unexpected parts %q / %q", email.LocalPart(), email.Domain())
	}

	for _, raw := range []string{"", "plain", "@example.com", "user@", "a b@example.com", "a@b@c"} {
		if _, err := NewEmail(raw); !apperr.IsKind(err, apperr.KindValidation) {
			t.Fatalf("expected validation error for %q, got %v", raw, err)
		}
	}
}

func TestValueObjects(t *testing.T) {
	if _, err := NewUserID("not-a-uuid"); err == nil {
		t.Fatalf("expected invalid user id error")
	}
	if _, err := NewPasswordHash("short"); err == nil {
		t.Fatalf("expected invalid hash error")
	}
	if _, err := NewSessionToken("abc"); err == nil {
		t.Fatalf("expected invalid token error")
	}
	a, _ := NewSessionToken(testToken)
	b, _ := NewSessionToken(testToken)
	if !a.Equals(b) {
		t.Fatalf("expected tokens with same value to be equal")
	}
	if _, err := NewFirstName("   "); err == nil {
		t.Fatalf("expected blank first name error")
	}
	if _, err := NewLastName(strings.Repeat("x", 101)); err == nil {
		t.Fatalf("expected long last name error")
	}
	if name, err := NewLastName(strings.Repeat("x", 100)); err != nil || len(name) != 100 {
		t.Fatalf("expected 100 chars to be accepted, got %q %v", name, err)
	}
}

func TestUserTransitionsReturnNewValues(t *testing.T) {
	user := newTestUser(t)
	later := baseTime.Add(time.Hour)

	deactivated := user.Deactivate(later)
	if !user.IsActive() {
		t.Fatalf("original user must stay active")
	}
	if deactivated.IsActive() || deactivated.CanLogin() {
		t.Fatalf("expected deactivated user")
	}
	if !deactivated.Activate(later).CanLogin() {
		t.Fatalf("expected reactivated user to login")
	}

	logged := user.UpdateLastLogin(later)
	if user.LastLoginAt() != nil {
		t.Fatalf("original user must keep nil last login")
	}
	if logged.LastLoginAt() == nil || !logged.LastLoginAt().Equal(later) {
		t.Fatalf("expected last login %v, got %v", later, logged.LastLoginAt())
	}

	renamed, err := user.UpdateName("Maria", "Lopez", later)
	if err != nil {
		t.Fatalf("update name: %v", err)
	}
	if renamed.FirstName() != "Maria" || user.FirstName() != "Ana" {
		t.Fatalf("unexpected names %q / %q", renamed.FirstName(), user.FirstName())
	}
	if _, err := user.UpdateName("", "Lopez", later); err == nil {
		t.Fatalf("expected error for blank first name")
	}
}

func TestUserMfaTransitions(t *testing.T) {
	user := newTestUser(t)
	if _, err := user.EnableMfa(" ", baseTime); !apperr.IsKind(err, apperr.KindDomain) {
		t.Fatalf("expected domain error for empty secret, got %v", err)
	}
	enabled, err := user.EnableMfa("JBSWY3DPEHPK3PXP", baseTime)
	if err != nil {
		t.Fatalf("enable mfa: %v", err)
	}
	if !enabled.MfaEnabled() || enabled.MfaSecret() != "JBSWY3DPEHPK3PXP" {
		t.Fatalf("expected mfa enabled with secret")
	}
	disabled := enabled.DisableMfa(baseTime)
	if disabled.MfaEnabled() || disabled.MfaSecret() != "" {
		t.Fatalf("expected mfa disabled and secret cleared")
	}
	if !enabled.MfaEnabled() {
		t.Fatalf("disable must not mutate the previous value")
	}
}

func TestUserExternalAccounts(t *testing.T) {
	user := newTestUser(t)
	acc, err := NewExternalAccount("acc-1", user.ID(), "Google", "g-123", "ana@example.com", baseTime)
	if err != nil {
		t.Fatalf("new external account: %v", err)
	}

	linked, err := user.AddExternalAccount(acc, baseTime)
	if err != nil {
		t.Fatalf("add account: %v", err)
	}
	if len(user.ExternalAccounts()) != 0 {
		t.Fatalf("original user must have no accounts")
	}
	if !linked.HasExternalAccount("google", "g-123") {
		t.Fatalf("expected account to be linked")
	}

	again, err := linked.AddExternalAccount(acc, baseTime)
	if err != nil || len(again.ExternalAccounts()) != 1 {
		t.Fatalf("expected idempotent link, got %d accounts, err %v", len(again.ExternalAccounts()), err)
	}

	other, _ := NewExternalAccount("acc-2", user.ID(), "google", "g-999", "", baseTime)
	if _, err := linked.AddExternalAccount(other, baseTime); !apperr.IsKind(err, apperr.KindDomain) {
		t.Fatalf("expected domain error for second google account, got %v", err)
	}

	foreign, _ := NewExternalAccount("acc-3", UserID("11111111-1111-1111-1111-111111111111"), "github", "gh-1", "", baseTime)
	if _, err := linked.AddExternalAccount(foreign, baseTime); err == nil {
		t.Fatalf("expected error for account of another user")
	}

	accounts := linked.ExternalAccounts()
	accounts[0].Provider = "mutated"
	if !linked.HasExternalAccount("google", "g-123") {
		t.Fatalf("accessor must return a copy")
	}
}

func TestUserRoundTrip(t *testing.T) {
	user := newTestUser(t).UpdateLastLogin(baseTime.Add(time.Minute))
	restored, err := ReconstructUser(user.Data())
	if err != nil {
		t.Fatalf("reconstruct: %v", err)
	}
	if restored.Email().String() != "ana@example.com" || restored.FirstName() != "Ana" {
		t.Fatalf("unexpected restored user %+v", restored.Data())
	}
	if !restored.LastLoginAt().Equal(*user.LastLoginAt()) {
		t.Fatalf("expected last login to round-trip")
	}
	if !restored.HasPassword() {
		t.Fatalf("expected password hash to round-trip")
	}
}

func TestUserJSONHidesSecrets(t *testing.T) {
	user, _ := newTestUser(t).EnableMfa("JBSWY3DPEHPK3PXP", baseTime)
	raw, err := user.MarshalJSON()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	body := string(raw)
	if strings.Contains(body, "argon2id") || strings.Contains(body, "JBSWY3DPEHPK3PXP") {
		t.Fatalf("json leaks secrets: %s", body)
	}
	if !strings.Contains(body, `"mfaEnabled":true`) {
		t.Fatalf("expected mfa flag in json: %s", body)
	}
}

func TestUserJSONUsesCamelCase(t *testing.T) {
	user := newTestUser(t).UpdateLastLogin(baseTime)
	acc, err := NewExternalAccount("acc-1", user.ID(), "github", "42", "ana@example.com", baseTime)
	if err != nil {
		t.Fatalf("new external account: %v", err)
	}
	if user, err = user.AddExternalAccount(acc, baseTime); err != nil {
		t.Fatalf("add external account: %v", err)
	}
	raw, err := json.Marshal(user)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, key := range []string{"id", "email", "firstName", "lastName", "isActive", "mfaEnabled", "createdAt", "updatedAt", "lastLoginAt", "externalAccounts"} {
		if _, ok := fields[key]; !ok {
			t.Fatalf("expected key %q in %s", key, raw)
		}
	}
	for key := range fields {
		if strings.Contains(key, "_") {
			t.Fatalf("unexpected snake_case key %q", key)
		}
	}
	if !strings.Contains(string(fields["externalAccounts"]), `"linkedAt"`) {
		t.Fatalf("expected linkedAt in external accounts: %s", fields["externalAccounts"])
	}
}

func TestSessionValidity(t *testing.T) {
	token, _ := NewSessionToken(testToken)
	expires := baseTime.Add(time.Hour)
	session, err := NewSession("s1", token, UserID(testUserID), expires, baseTime)
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if session.TokenHash() != HashSessionToken(testToken) {
		t.Fatalf("expected token hash to be derived from token")
	}

	cases := []struct {
		name    string
		session Session
		at      time.Time
		valid   bool
	}{
		{"active before expiry", session, baseTime, true},
		{"active at expiry instant", session, expires, true},
		{"active after expiry", session, expires.Add(time.Nanosecond), false},
		{"inactive before expiry", session.Deactivate(baseTime), baseTime, false},
		{"revoked", session.Revoke(baseTime), baseTime, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			want := tc.session.IsActive() && !tc.at.After(tc.session.ExpiresAt())
			if got := tc.session.IsValidAt(tc.at); got != tc.valid || got != want {
				t.Fatalf("expected valid=%v, got %v", tc.valid, got)
			}
		})
	}

	if !session.IsActive() {
		t.Fatalf("deactivate must not mutate the original session")
	}
	if _, err := NewSession("s2", token, UserID(testUserID), baseTime, baseTime); err == nil {
		t.Fatalf("expected error for expiry not in the future")
	}
}

func TestSessionUpdateExpiry(t *testing.T) {
	token, _ := NewSessionToken(testToken)
	expires := baseTime.Add(time.Hour)
	session, _ := NewSession("s1", token, UserID(testUserID), expires, baseTime)

	for _, bad := range []time.Time{expires, expires.Add(-time.Second)} {
		if _, err := session.UpdateExpiry(bad, baseTime); !errors.Is(err, apperr.Domain("New expiry date must be later than current expiry date")) {
			t.Fatalf("expected domain error for %v, got %v", bad, err)
		}
	}
	extended, err := session.UpdateExpiry(expires.Add(time.Hour), baseTime)
	if err != nil {
		t.Fatalf("update expiry: %v", err)
	}
	if !extended.ExpiresAt().Equal(expires.Add(time.Hour)) || !session.ExpiresAt().Equal(expires) {
		t.Fatalf("unexpected expiries %v / %v", extended.ExpiresAt(), session.ExpiresAt())
	}
}

func TestSessionRoundTrip(t *testing.T) {
	token, _ := NewSessionToken(testToken)
	session, _ := NewSession("s1", token, UserID(testUserID), baseTime.Add(time.Hour), baseTime)
	restored, err := ReconstructSession(session.Data())
	if err != nil {
		t.Fatalf("reconstruct: %v", err)
	}
	if restored.Data() != session.Data() {
		t.Fatalf("expected identical data, got %+v vs %+v", restored.Data(), session.Data())
	}

	stored := session.Data()
	stored.Token = ""
	fromStorage, err := ReconstructSession(stored)
	if err != nil {
		t.Fatalf("reconstruct from hash only: %v", err)
	}
	if fromStorage.Token() != "" || fromStorage.TokenHash() != session.TokenHash() {
		t.Fatalf("expected hash-only session")
	}

	stored.TokenHash = ""
	if _, err := ReconstructSession(stored); err == nil {
		t.Fatalf("expected error without token or hash")
	}
}

func TestValidateRegistrationData(t *testing.T) {
	valid := RegistrationData{Email: "a@b.com", Password: "longpassword1", FirstName: "A", LastName: "B"}
	if err := ValidateRegistrationData(valid); err != nil {
		t.Fatalf("expected valid registration, got %v", err)
	}

	cases := []struct {
		name string
		edit func(d *RegistrationData)
		want error
	}{
		{"missing at", func(d *RegistrationData) { d.Email = "ab.com" }, ErrInvalidEmail},
		{"short password", func(d *RegistrationData) { d.Password = "short1" }, ErrPasswordTooShort},
		{"seven chars", func(d *RegistrationData) { d.Password = "1234567" }, ErrPasswordTooShort},
		{"blank first name", func(d *RegistrationData) { d.FirstName = "  " }, ErrFirstNameRequired},
		{"blank last name", func(d *RegistrationData) { d.LastName = "" }, ErrLastNameRequired},
		{"contains local part", func(d *RegistrationData) {
			d.Email = "johnny@example.com"
			d.Password = "myJohnnyPass1"
		}, ErrPasswordContainsEmail},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := valid
			tc.edit(&d)
			err := ValidateRegistrationData(d)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if !apperr.IsKind(err, apperr.KindDomain) {
				t.Fatalf("expected domain error kind, got %v", err)
			}
		})
	}
}

func TestCanUserLoginAndPasswordChange(t *testing.T) {
	user := newTestUser(t)
	if err := CanUserLogin(user); err != nil {
		t.Fatalf("expected active user to login, got %v", err)
	}
	if err := CanUserLogin(user.Deactivate(baseTime)); !errors.Is(err, ErrUserDeactivated) {
		t.Fatalf("expected deactivated error, got %v", err)
	}
	if err := ValidatePasswordChange("oldpassword", "short"); !errors.Is(err, ErrNewPasswordTooShort) {
		t.Fatalf("expected short new password error, got %v", err)
	}
	if err := ValidatePasswordChange("samepassword", "samepassword"); !errors.Is(err, ErrPasswordUnchanged) {
		t.Fatalf("expected unchanged password error, got %v", err)
	}
	if err := ValidateNameUpdate("A", " "); !errors.Is(err, ErrLastNameRequired) {
		t.Fatalf("expected last name error, got %v", err)
	}
}

func TestPermissionMatching(t *testing.T) {
	role, err := NewRole("r1", "editor", "", "article:*", "comment:read")
	if err != nil {
		t.Fatalf("new role: %v", err)
	}
	cases := map[string]bool{
		"article:read":   true,
		"article:delete": true,
		"comment:read":   true,
		"comment:delete": false,
		"article":        false,
		"user:read":      false,
	}
	for required, want := range cases {
		if got := role.HasPermission(required); got != want {
			t.Fatalf("HasPermission(%q) expected %v, got %v", required, want, got)
		}
	}

	admin, _ := NewRole("r2", "admin", "", "*")
	if !admin.HasPermission("article:read") || !admin.HasPermission("user:delete") {
		t.Fatalf("expected global wildcard to match everything")
	}

	granted, err := role.Grant("user:read")
	if err != nil {
		t.Fatalf("grant: %v", err)
	}
	if !granted.HasPermission("user:read") || role.HasPermission("user:read") {
		t.Fatalf("grant must return a new role")
	}
	if _, err := NewRole("r3", " ", ""); err == nil {
		t.Fatalf("expected error for blank role name")
	}
}
