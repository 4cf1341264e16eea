package oauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/microsoft"
)

const defaultMicrosoftGraphURL = "https://graph.microsoft.com/v1.0/me"

// MicrosoftConfig apunta al endpoint v2.0 de Entra ID para el tenant dado.
// TrustEmail solo debe activarse para tenants propios: mail y UPN los asigna
// el administrador del tenant y Microsoft no los verifica.
type MicrosoftConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	TenantID     string
	TrustEmail   bool

	LoginURL   string
	GraphURL   string
	HTTPClient *http.Client
}

type MicrosoftClient struct {
	oauth      *oauth2.Config
	graphURL   string
	trustEmail bool
	http       *http.Client
}

func NewMicrosoftClient(config MicrosoftConfig) *MicrosoftClient {
	if config.TenantID == "" {
		config.TenantID = "common"
	}
	if config.GraphURL == "" {
		config.GraphURL = defaultMicrosoftGraphURL
	}
	endpoint := microsoft.AzureADEndpoint(config.TenantID)
	if config.LoginURL != "" {
		base := fmt.Sprintf("%s/%s/oauth2/v2.0/", strings.TrimRight(config.LoginURL, "/"), url.PathEscape(config.TenantID))
		endpoint = endpointOr(endpoint, base+"authorize", base+"token")
	}
	return &MicrosoftClient{
		oauth: &oauth2.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			RedirectURL:  config.RedirectURL,
			Endpoint:     endpoint,
			Scopes:       []string{"openid", "email", "profile", "User.Read"},
		},
		graphURL:   config.GraphURL,
		trustEmail: config.TrustEmail,
		http:       defaultHTTPClient(config.HTTPClient),
	}
}

func (c *MicrosoftClient) Provider() string { return "microsoft" }

func (c *MicrosoftClient) AuthURL(state string) string {
	return c.oauth.AuthCodeURL(state, oauth2.SetAuthURLParam("response_mode", "query"))
}

type graphUser struct {
	ID                string `json:"id"`
	DisplayName       string `json:"displayName"`
	GivenName         string `json:"givenName"`
	Surname           string `json:"surname"`
	Mail              string `json:"mail"`
	UserPrincipalName string `json:"userPrincipalName"`
}

func (c *MicrosoftClient) Authenticate(ctx context.Context, code string) (UserInfo, error) {
	client, err := exchange(ctx, c.oauth, c.http, code)
	if err != nil {
		return UserInfo{}, fmt.Errorf("microsoft: %w", err)
	}
	var me graphUser
	if err := getJSON(ctx, client, c.graphURL, &me); err != nil {
		return UserInfo{}, fmt.Errorf("microsoft: failed to fetch profile: %w", err)
	}
	if me.ID == "" {
		return UserInfo{}, errors.New("microsoft: empty id in profile response")
	}
	var email string
	if c.trustEmail {
		email = me.Mail
		if email == "" && strings.Contains(me.UserPrincipalName, "@") {
			email = me.UserPrincipalName
		}
	}
	first, last := me.GivenName, me.Surname
	if first == "" && last == "" {
		first, last = splitName(me.DisplayName)
	}
	return UserInfo{
		Provider:   c.Provider(),
		ExternalID: me.ID,
		Email:      email,
		FirstName:  first,
		LastName:   last,
	}, nil
}

var _ Client = (*MicrosoftClient)(nil)
