// Package oauth implementa el flujo authorization-code contra Google, GitHub y Microsoft.
package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

var ErrUnknownProvider = errors.New("unknown oauth provider")

// UserInfo es la identidad normalizada que devuelve un proveedor.
// Email solo viene cargado si el proveedor lo verifico; vacio no habilita merge por email.
type UserInfo struct {
	Provider   string
	ExternalID string
	Email      string
	FirstName  string
	LastName   string
}

// Client es un proveedor OAuth configurado.
type Client interface {
	Provider() string
	AuthURL(state string) string
	Authenticate(ctx context.Context, code string) (UserInfo, error)
}

// Registry indexa los clientes habilitados por nombre de proveedor.
type Registry struct {
	clients map[string]Client
}

func NewRegistry(clients ...Client) *Registry {
	r := &Registry{clients: make(map[string]Client, len(clients))}
	for _, c := range clients {
		if c != nil {
			r.clients[c.Provider()] = c
		}
	}
	return r
}

func (r *Registry) Get(provider string) (Client, error) {
	c, ok := r.clients[strings.ToLower(strings.TrimSpace(provider))]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, provider)
	}
	return c, nil
}

// Providers devuelve los nombres habilitados, ordenados.
func (r *Registry) Providers() []string {
	names := make([]string, 0, len(r.clients))
	for name := range r.clients {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func defaultHTTPClient(c *http.Client) *http.Client {
	if c != nil {
		return c
	}
	return &http.Client{Timeout: 10 * time.Second}
}

// endpointOr devuelve def salvo que los tests reemplacen alguna URL.
func endpointOr(def oauth2.Endpoint, authURL, tokenURL string) oauth2.Endpoint {
	if authURL == "" && tokenURL == "" {
		return def
	}
	ep := def
	if authURL != "" {
		ep.AuthURL = authURL
	}
	if tokenURL != "" {
		ep.TokenURL = tokenURL
	}
	ep.AuthStyle = oauth2.AuthStyleInParams
	return ep
}

// exchange canjea el codigo y devuelve un cliente HTTP que firma con el access token.
func exchange(ctx context.Context, cfg *oauth2.Config, base *http.Client, code string) (*http.Client, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, base)
	tok, err := cfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("token exchange failed: %w", err)
	}
	return cfg.Client(ctx, tok), nil
}

// getJSON hace un GET con el cliente autenticado y decodifica la respuesta.
func getJSON(ctx context.Context, client *http.Client, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// splitName separa un nombre completo en nombre y apellido.
func splitName(full string) (string, string) {
	parts := strings.Fields(full)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], ""
	default:
		return parts[0], strings.Join(parts[1:], " ")
	}
}
