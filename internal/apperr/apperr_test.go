package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestKindStatus(t *testing.T) {
	cases := map[Kind]int{
		KindDomain:     http.StatusBadRequest,
		KindValidation: http.StatusUnprocessableEntity,
		KindAuth:       http.StatusUnauthorized,
		KindNotFound:   http.StatusNotFound,
		KindInfra:      http.StatusInternalServerError,
		Kind("other"):  http.StatusInternalServerError,
	}
	for kind, want := range cases {
		if got := kind.Status(); got != want {
			t.Fatalf("expected %d for %s, got %d", want, kind, got)
		}
	}
}

func TestErrorsIsMatchesKindAndMessage(t *testing.T) {
	err := fmt.Errorf("login: %w", Auth("Invalid credentials"))

	if !errors.Is(err, Auth("Invalid credentials")) {
		t.Fatalf("expected match on kind and message")
	}
	if !errors.Is(err, &Error{Kind: KindAuth}) {
		t.Fatalf("expected match on kind only")
	}
	if errors.Is(err, Auth("Invalid MFA code")) {
		t.Fatalf("expected mismatch on different message")
	}
	if errors.Is(err, Domain("Invalid credentials")) {
		t.Fatalf("expected mismatch on different kind")
	}
}

func TestNotFoundMessage(t *testing.T) {
	err := NotFound("User", "u1")
	if err.Message != "User with id u1 not found" {
		t.Fatalf("unexpected message %q", err.Message)
	}
	if err.Status() != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", err.Status())
	}
}

func TestInfraHidesCause(t *testing.T) {
	cause := errors.New("connection refused on 10.0.0.3")
	err := Infra(cause)

	if err.PublicMessage() != "Internal server error" {
		t.Fatalf("expected generic public message, got %q", err.PublicMessage())
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected cause to be reachable through Unwrap")
	}
}

func TestNormalize(t *testing.T) {
	if Normalize(nil) != nil {
		t.Fatalf("expected nil for nil error")
	}
	plain := Normalize(errors.New("boom"))
	if plain.Kind != KindInfra {
		t.Fatalf("expected infra kind, got %s", plain.Kind)
	}
	wrapped := Normalize(fmt.Errorf("ctx: %w", Validation("bad email")))
	if wrapped.Kind != KindValidation || wrapped.Message != "bad email" {
		t.Fatalf("unexpected normalized error %+v", wrapped)
	}
	if !IsKind(fmt.Errorf("x: %w", Domain("d")), KindDomain) {
		t.Fatalf("expected IsKind to see wrapped domain error")
	}
	if IsKind(nil, KindInfra) {
		t.Fatalf("nil error must not match any kind")
	}
}
