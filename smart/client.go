package smart

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/hashicorp/go-hclog"
	"golang.org/x/oauth2"

	sdkhttp "github.com/jupyterhealth/smartflow/sdk/http"
	"github.com/jupyterhealth/smartflow/sdk/strutils"
)

// Config represents the registration of one public client: the id and
// redirect URL the client was registered with, and the default scopes it
// requests. There is no client secret; the authorization code is bound
// to the client with PKCE instead.
type Config struct {
	// ClientID is the relying party id
	ClientID string

	// RedirectURL is the callback URL registered for this client
	RedirectURL string

	// Scopes is the default list of scopes to request of the provider.
	// An AuthRequest may carry its own scopes per attempt.
	Scopes []string

	// ProviderCA is an optional CA cert to use when sending requests to
	// the provider.
	ProviderCA string
}

// NewConfig composes a new config for a client.
// Supported options: WithScopes, WithProviderCA
func NewConfig(clientID, redirectURL string, opt ...Option) (*Config, error) {
	const op = "smart.NewConfig"
	opts := getConfigOpts(opt...)
	c := &Config{
		ClientID:    clientID,
		RedirectURL: redirectURL,
		Scopes:      strutils.RemoveDuplicatesStable(opts.withScopes, false),
		ProviderCA:  opts.withProviderCA,
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: invalid client config: %w", op, err)
	}
	return c, nil
}

// Validate the client configuration. It verifies the client id and
// redirect URL are set, but it doesn't verify the redirect URL is
// registered with any provider.
func (c *Config) Validate() error {
	const op = "Config.Validate"
	if c == nil {
		return fmt.Errorf("%s: client config is nil: %w", op, ErrNilParameter)
	}
	if c.ClientID == "" {
		return fmt.Errorf("%s: client id is empty: %w", op, ErrInvalidParameter)
	}
	if c.RedirectURL == "" {
		return fmt.Errorf("%s: redirect URL is empty: %w", op, ErrInvalidParameter)
	}
	u, err := url.Parse(c.RedirectURL)
	if err != nil {
		return fmt.Errorf("%s: redirect URL %s is invalid: %w", op, c.RedirectURL, err)
	}
	if !strutils.StrListContains([]string{"https", "http"}, u.Scheme) {
		return fmt.Errorf("%s: redirect URL %s scheme is not http or https: %w", op, c.RedirectURL, ErrInvalidParameter)
	}
	return nil
}

// HTTPClient is a helper function that creates a new http client for the
// provider configured
func (c *Config) HTTPClient() (*http.Client, error) {
	const op = "Config.HTTPClient"
	client, err := sdkhttp.NewClient(c.ProviderCA)
	if err != nil {
		if errors.Is(err, sdkhttp.ErrInvalidCertificatePem) {
			return nil, fmt.Errorf("%s: could not parse CA PEM value: %w", op, ErrInvalidCACert)
		}
		return nil, fmt.Errorf("%s: could not get an http client: %w", op, err)
	}
	return client, nil
}

// HTTPClientContext is a helper function that returns a new Context that
// carries the provided HTTP client. This method sets the same context key
// used by the github.com/coreos/go-oidc and golang.org/x/oauth2 packages,
// so the returned context works for those packages as well.
func HTTPClientContext(ctx context.Context, client *http.Client) context.Context {
	// simple to implement as a wrapper for the coreos package
	return oidc.ClientContext(ctx, client)
}

// Client drives the authorization code flow for one client registration
// against providers resolved at request time, which is how SMART EHR
// launches hand the app its issuer.
type Client struct {
	config     *Config
	discoverer *Discoverer
	client     *http.Client
	logger     hclog.Logger
}

// NewClient creates a Client for the authorization code flow. Discovery
// is lazy: no request is made to any issuer until AuthURL or Exchange
// needs its metadata.
//
// Supported options: WithLogger, WithDiscoverer
func NewClient(c *Config, opt ...Option) (*Client, error) {
	const op = "smart.NewClient"
	if c == nil {
		return nil, fmt.Errorf("%s: client config is nil: %w", op, ErrNilParameter)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: client config is invalid: %w", op, err)
	}
	opts := getConfigOpts(opt...)

	discoverer := opts.withDiscoverer
	if discoverer == nil {
		var err error
		discoverer, err = NewDiscoverer(WithLogger(opts.withLogger), WithProviderCA(c.ProviderCA))
		if err != nil {
			return nil, fmt.Errorf("%s: unable to create discoverer: %w", op, err)
		}
	}
	httpClient, err := c.HTTPClient()
	if err != nil {
		return nil, fmt.Errorf("%s: unable to create http client: %w", op, err)
	}
	return &Client{
		config:     c,
		discoverer: discoverer,
		client:     httpClient,
		logger:     opts.withLogger,
	}, nil
}

// Discoverer returns the metadata cache this client resolves issuers
// through.
func (c *Client) Discoverer() *Discoverer { return c.discoverer }

// AuthURL will generate a URL the caller can use to kick off an
// authorization code flow with the provider at issuerBase. It binds the
// attempt's state, PKCE challenge and extra parameters (merged last, so
// they may override defaults) into the URL.
//
// The caller is responsible for persisting the attempt's state and
// verifier BEFORE issuing the redirect; otherwise the subsequent
// callback cannot be validated.
func (c *Client) AuthURL(ctx context.Context, issuerBase string, req AuthRequest) (string, error) {
	const op = "Client.AuthURL"
	if req == nil {
		return "", fmt.Errorf("%s: auth request is nil: %w", op, ErrNilParameter)
	}
	if req.IsExpired() {
		return "", fmt.Errorf("%s: %w", op, ErrExpiredAuthRequest)
	}
	md, err := c.discoverer.Discover(ctx, issuerBase)
	if err != nil {
		return "", fmt.Errorf("%s: unable to discover provider: %w", op, err)
	}

	oauth2Config := c.oauth2Config(md, req)
	authCodeOpts := []oauth2.AuthCodeOption{
		oauth2.SetAuthURLParam("code_challenge", req.Verifier().Challenge()),
		oauth2.SetAuthURLParam("code_challenge_method", string(req.Verifier().Method())),
	}
	for k, vs := range req.AuthParams() {
		for _, v := range vs {
			authCodeOpts = append(authCodeOpts, oauth2.SetAuthURLParam(k, v))
		}
	}
	return oauth2Config.AuthCodeURL(req.State(), authCodeOpts...), nil
}

// Exchange will request a token from the provider's token endpoint using
// the authorization code and the attempt's PKCE verifier.
//
// It validates the response state against the attempt's state first: a
// mismatch is the CSRF defense firing and is never continued past. The
// attempt must still be unexpired.
//
// On success, the Token returned includes the access token, any id_token
// and every extra response field the provider sent (for SMART providers,
// the launch context).
func (c *Client) Exchange(ctx context.Context, issuerBase string, req AuthRequest, responseState, responseCode string) (*Tk, error) {
	const op = "Client.Exchange"
	if req == nil {
		return nil, fmt.Errorf("%s: auth request is nil: %w", op, ErrNilParameter)
	}
	if responseState != req.State() {
		return nil, fmt.Errorf("%s: authentication state and response state are not equal: %w", op, ErrStateMismatch)
	}
	if req.IsExpired() {
		return nil, fmt.Errorf("%s: authentication state is expired: %w", op, ErrExpiredAuthRequest)
	}
	if responseCode == "" {
		return nil, fmt.Errorf("%s: authorization code is empty: %w", op, ErrInvalidParameter)
	}
	md, err := c.discoverer.Discover(ctx, issuerBase)
	if err != nil {
		return nil, fmt.Errorf("%s: unable to discover provider: %w", op, err)
	}

	oidcCtx := HTTPClientContext(ctx, c.client)
	oauth2Config := c.oauth2Config(md, req)
	exchangeOpts := []oauth2.AuthCodeOption{
		oauth2.SetAuthURLParam("code_verifier", req.Verifier().Verifier()),
	}
	for k, vs := range req.TokenParams() {
		for _, v := range vs {
			exchangeOpts = append(exchangeOpts, oauth2.SetAuthURLParam(k, v))
		}
	}
	oauth2Token, err := oauth2Config.Exchange(oidcCtx, responseCode, exchangeOpts...)
	if err != nil {
		var rErr *oauth2.RetrieveError
		if errors.As(err, &rErr) {
			return nil, fmt.Errorf("%s: token endpoint returned status %d: %s: %w", op, rErr.Response.StatusCode, string(rErr.Body), ErrTokenExchange)
		}
		return nil, fmt.Errorf("%s: unable to exchange auth code with provider: %w: %w", op, ErrTokenExchange, err)
	}
	t, err := NewToken(oauth2Token)
	if err != nil {
		return nil, fmt.Errorf("%s: unable to create token: %w", op, err)
	}
	c.logger.Debug("exchanged authorization code", "issuer", issuerBase)
	return t, nil
}

// oauth2Config assembles the per-attempt oauth2 configuration from the
// discovered metadata.
func (c *Client) oauth2Config(md *ProviderMetadata, req AuthRequest) oauth2.Config {
	scopes := req.Scopes()
	if len(scopes) == 0 {
		scopes = c.config.Scopes
	}
	return oauth2.Config{
		ClientID:    c.config.ClientID,
		RedirectURL: c.config.RedirectURL,
		Scopes:      scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  md.AuthorizationEndpoint,
			TokenURL: md.TokenEndpoint,
			// public client: the client_id travels in the request body,
			// there is no secret for basic auth
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

// configOptions is the set of available options
type configOptions struct {
	withScopes     []string
	withProviderCA string
	withLogger     hclog.Logger
	withDiscoverer *Discoverer
}

// configDefaults is a handy way to get the defaults at runtime and
// during unit tests.
func configDefaults() configOptions {
	return configOptions{
		withLogger: hclog.NewNullLogger(),
	}
}

// getConfigOpts gets the defaults and applies the opt overrides passed
// in.
func getConfigOpts(opt ...Option) configOptions {
	opts := configDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithDiscoverer provides an optional shared Discoverer for a client, so
// multiple clients (and anything else resolving issuers) use one
// metadata cache.
func WithDiscoverer(d *Discoverer) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withDiscoverer = d
		}
	}
}
