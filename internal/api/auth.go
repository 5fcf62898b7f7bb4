package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	// DefaultAuthorityURL is the Azure AD (Entra ID) authority for the public cloud.
	DefaultAuthorityURL = "https://login.microsoftonline.com"
	// PurviewResource is the resource that tokens for the Purview catalog are issued for.
	PurviewResource = "https://purview.azure.net"
)

// Credentials holds everything needed to authenticate against the catalog.
// Either the service principal fields or Username must be set.
type Credentials struct {
	TenantID     string
	ClientID     string
	ClientSecret string
	// The Azure AD authority. Defaults to DefaultAuthorityURL.
	AuthorityURL string
	// The resource to request tokens for. Defaults to PurviewResource.
	Resource string

	// Basic auth, as used by a plain Apache Atlas server.
	Username string
	Password string
}

// Authenticator turns a base HTTP client into one that authenticates every request.
type Authenticator interface {
	Client(ctx context.Context, base *http.Client) *http.Client
}

// ServicePrincipalAuth authenticates with the OAuth2 client credentials flow
// of an Azure AD service principal. Tokens are cached and refreshed by the
// oauth2 token source for the lifetime of the returned client.
type ServicePrincipalAuth struct {
	cfg clientcredentials.Config
}

// BasicAuth authenticates with a username and password.
type BasicAuth struct {
	Username string
	Password string
}

var _ Authenticator = (*ServicePrincipalAuth)(nil)
var _ Authenticator = (*BasicAuth)(nil)

// NewAuthenticator picks the authentication method from the given credentials.
// The service principal takes precedence as soon as any of its fields is set.
// It fails with ErrAuthentication if no complete set of credentials is present.
func NewAuthenticator(c Credentials) (Authenticator, error) {
	if c.TenantID != "" || c.ClientID != "" || c.ClientSecret != "" {
		return NewServicePrincipalAuth(c)
	}
	if c.Username != "" {
		if c.Password == "" {
			return nil, fmt.Errorf("%w: missing password for user %s", ErrAuthentication, c.Username)
		}
		return &BasicAuth{Username: c.Username, Password: c.Password}, nil
	}
	return NewServicePrincipalAuth(c)
}

func NewServicePrincipalAuth(c Credentials) (*ServicePrincipalAuth, error) {
	var missing []string
	if c.TenantID == "" {
		missing = append(missing, "tenant ID")
	}
	if c.ClientID == "" {
		missing = append(missing, "client ID")
	}
	if c.ClientSecret == "" {
		missing = append(missing, "client secret")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing %s", ErrAuthentication, strings.Join(missing, ", "))
	}

	authority := c.AuthorityURL
	if authority == "" {
		authority = DefaultAuthorityURL
	}
	if _, err := url.Parse(authority); err != nil {
		return nil, fmt.Errorf("invalid authority URL %q: %v", authority, err)
	}
	resource := c.Resource
	if resource == "" {
		resource = PurviewResource
	}

	return &ServicePrincipalAuth{
		cfg: clientcredentials.Config{
			ClientID:     c.ClientID,
			ClientSecret: c.ClientSecret,
			TokenURL:     strings.TrimSuffix(authority, "/") + "/" + url.PathEscape(c.TenantID) + "/oauth2/token",
			EndpointParams: url.Values{
				"resource": {resource},
			},
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}, nil
}

// TokenURL returns the URL that tokens are requested from.
func (a *ServicePrincipalAuth) TokenURL() string {
	return a.cfg.TokenURL
}

func (a *ServicePrincipalAuth) Client(ctx context.Context, base *http.Client) *http.Client {
	if base == nil {
		base = http.DefaultClient
	}
	// The token source uses the base client to fetch tokens.
	ctx = context.WithValue(ctx, oauth2.HTTPClient, base)
	c := a.cfg.Client(ctx)
	c.Timeout = base.Timeout
	return c
}

type basicAuthTransport struct {
	username string
	password string
	next     http.RoundTripper
}

func (t *basicAuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// RoundTrippers must not modify the request.
	r := req.Clone(req.Context())
	r.SetBasicAuth(t.username, t.password)
	return t.next.RoundTrip(r)
}

func (a *BasicAuth) Client(_ context.Context, base *http.Client) *http.Client {
	if base == nil {
		base = http.DefaultClient
	}
	next := base.Transport
	if next == nil {
		next = http.DefaultTransport
	}
	return &http.Client{
		Transport: &basicAuthTransport{
			username: a.Username,
			password: a.Password,
			next:     next,
		},
		Timeout: base.Timeout,
	}
}
