package oauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

const defaultGoogleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"

// GoogleConfig configura el cliente de Google. Las URLs se pueden reemplazar en tests.
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string

	AuthURL     string
	TokenURL    string
	UserInfoURL string
	HTTPClient  *http.Client
}

type GoogleClient struct {
	oauth       *oauth2.Config
	userInfoURL string
	http        *http.Client
}

func NewGoogleClient(config GoogleConfig) *GoogleClient {
	if config.UserInfoURL == "" {
		config.UserInfoURL = defaultGoogleUserInfoURL
	}
	return &GoogleClient{
		oauth: &oauth2.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			RedirectURL:  config.RedirectURL,
			Endpoint:     endpointOr(endpoints.Google, config.AuthURL, config.TokenURL),
			Scopes:       []string{"openid", "email", "profile"},
		},
		userInfoURL: config.UserInfoURL,
		http:        defaultHTTPClient(config.HTTPClient),
	}
}

func (c *GoogleClient) Provider() string { return "google" }

func (c *GoogleClient) AuthURL(state string) string {
	return c.oauth.AuthCodeURL(state)
}

type googleUserInfo struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	GivenName     string `json:"given_name"`
	FamilyName    string `json:"family_name"`
}

func (c *GoogleClient) Authenticate(ctx context.Context, code string) (UserInfo, error) {
	client, err := exchange(ctx, c.oauth, c.http, code)
	if err != nil {
		return UserInfo{}, fmt.Errorf("google: %w", err)
	}
	var info googleUserInfo
	if err := getJSON(ctx, client, c.userInfoURL, &info); err != nil {
		return UserInfo{}, fmt.Errorf("google: failed to fetch user info: %w", err)
	}
	if info.Sub == "" {
		return UserInfo{}, errors.New("google: empty sub in user info response")
	}
	email := ""
	if info.EmailVerified {
		email = info.Email
	}
	first, last := info.GivenName, info.FamilyName
	if first == "" && last == "" {
		first, last = splitName(info.Name)
	}
	return UserInfo{
		Provider:   c.Provider(),
		ExternalID: info.Sub,
		Email:      email,
		FirstName:  first,
		LastName:   last,
	}, nil
}

var _ Client = (*GoogleClient)(nil)
