package oauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

const defaultGitHubAPIURL = "https://api.github.com"

type GitHubConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string

	AuthURL    string
	TokenURL   string
	APIURL     string
	HTTPClient *http.Client
}

type GitHubClient struct {
	oauth  *oauth2.Config
	apiURL string
	http   *http.Client
}

func NewGitHubClient(config GitHubConfig) *GitHubClient {
	if config.APIURL == "" {
		config.APIURL = defaultGitHubAPIURL
	}
	return &GitHubClient{
		oauth: &oauth2.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			RedirectURL:  config.RedirectURL,
			Endpoint:     endpointOr(endpoints.GitHub, config.AuthURL, config.TokenURL),
			Scopes:       []string{"read:user", "user:email"},
		},
		apiURL: strings.TrimRight(config.APIURL, "/"),
		http:   defaultHTTPClient(config.HTTPClient),
	}
}

func (c *GitHubClient) Provider() string { return "github" }

func (c *GitHubClient) AuthURL(state string) string {
	return c.oauth.AuthCodeURL(state)
}

type githubUser struct {
	ID    int64  `json:"id"`
	Login string `json:"login"`
	Name  string `json:"name"`
}

type githubEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

func (c *GitHubClient) Authenticate(ctx context.Context, code string) (UserInfo, error) {
	client, err := exchange(ctx, c.oauth, c.http, code)
	if err != nil {
		return UserInfo{}, fmt.Errorf("github: %w", err)
	}
	var user githubUser
	if err := getJSON(ctx, client, c.apiURL+"/user", &user); err != nil {
		return UserInfo{}, fmt.Errorf("github: failed to fetch user: %w", err)
	}
	if user.ID == 0 {
		return UserInfo{}, errors.New("github: empty id in user response")
	}

	// Solo el email primario verificado; el del perfil no trae estado de verificacion.
	var email string
	var emails []githubEmail
	if err := getJSON(ctx, client, c.apiURL+"/user/emails", &emails); err == nil {
		for _, e := range emails {
			if e.Primary && e.Verified {
				email = e.Email
				break
			}
		}
	}

	name := user.Name
	if name == "" {
		name = user.Login
	}
	first, last := splitName(name)
	return UserInfo{
		Provider:   c.Provider(),
		ExternalID: strconv.FormatInt(user.ID, 10),
		Email:      email,
		FirstName:  first,
		LastName:   last,
	}, nil
}

var _ Client = (*GitHubClient)(nil)
