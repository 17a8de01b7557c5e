// Package exchange implements the RFC 8693 token-exchange hop between
// providers: it trades an access token issued by one provider for a
// token scoped to a target data platform, without another user prompt.
// The platform decides whether to honor the exchange based on the
// subject token and the issuer hint it is told the token came from.
package exchange

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/hashicorp/go-hclog"

	sdkhttp "github.com/jupyterhealth/smartflow/sdk/http"
	"github.com/jupyterhealth/smartflow/sdk/strutils"
	"github.com/jupyterhealth/smartflow/smart"
)

const (
	// GrantType is the RFC 8693 token-exchange grant type URN.
	GrantType = "urn:ietf:params:oauth:grant-type:token-exchange"

	// AccessTokenType is the RFC 8693 URN for an access token, used for
	// both the subject and the requested token type.
	AccessTokenType = "urn:ietf:params:oauth:token-type:access_token"

	// Path is where the target platform serves its token-exchange
	// endpoint, relative to its base URL.
	Path = "/o/token-exchange"
)

// maxResponseBytes caps how much of an exchange response is read.
const maxResponseBytes = 1 << 20

// Response is a successful token-exchange response. Only AccessToken is
// required; the remaining members are captured when the platform sends
// them.
type Response struct {
	AccessToken     smart.AccessToken `json:"access_token"`
	IssuedTokenType string            `json:"issued_token_type"`
	TokenType       string            `json:"token_type"`
	ExpiresIn       int64             `json:"expires_in"`
	Scope           string            `json:"scope"`
}

// Exchanger performs token exchanges against one target platform.
type Exchanger struct {
	baseURL   string
	client    *http.Client
	logger    hclog.Logger
	aliasFrom string
	aliasTo   string
}

// NewExchanger creates an Exchanger for the platform at baseURL.
// Supported options: WithLogger, WithProviderCA, WithIssuerAlias
func NewExchanger(baseURL string, opt ...Option) (*Exchanger, error) {
	const op = "exchange.NewExchanger"
	if baseURL == "" {
		return nil, fmt.Errorf("%s: base URL is empty: %w", op, ErrInvalidParameter)
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("%s: base URL %s is invalid: %w", op, baseURL, err)
	}
	if !strutils.StrListContains([]string{"https", "http"}, u.Scheme) || u.Host == "" {
		return nil, fmt.Errorf("%s: base URL %s is not an http or https URL: %w", op, baseURL, ErrInvalidParameter)
	}
	opts := getExchangerOpts(opt...)
	client, err := sdkhttp.NewClient(opts.withProviderCA)
	if err != nil {
		if errors.Is(err, sdkhttp.ErrInvalidCertificatePem) {
			return nil, fmt.Errorf("%s: could not parse CA PEM value: %w", op, ErrInvalidCACert)
		}
		return nil, fmt.Errorf("%s: could not get an http client: %w", op, err)
	}
	return &Exchanger{
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		client:    client,
		logger:    opts.withLogger,
		aliasFrom: opts.withAliasFrom,
		aliasTo:   opts.withAliasTo,
	}, nil
}

// Audience returns the audience value sent with every exchange: the
// target platform's base URL.
func (e *Exchanger) Audience() string { return e.baseURL }

// Exchange trades the subject's access token for one scoped to the
// target platform. The issuer is the base URI of the provider that
// minted the subject token; it is sent, after any configured alias
// rewrite, so the platform knows where to validate the token.
func (e *Exchanger) Exchange(ctx context.Context, subjectToken smart.AccessToken, issuer string) (*Response, error) {
	const op = "Exchanger.Exchange"
	if subjectToken == "" {
		return nil, fmt.Errorf("%s: subject token is empty: %w", op, ErrInvalidParameter)
	}
	if issuer == "" {
		return nil, fmt.Errorf("%s: issuer is empty: %w", op, ErrInvalidParameter)
	}

	form := url.Values{
		"grant_type":           {GrantType},
		"subject_token":        {string(subjectToken)},
		"subject_token_type":   {AccessTokenType},
		"requested_token_type": {AccessTokenType},
		"audience":             {e.baseURL},
		"iss":                  {e.rewriteIssuer(issuer)},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+Path, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("%s: unable to create token-exchange request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: token-exchange request failed: %w: %w", op, ErrTokenExchange, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%s: unable to read token-exchange response: %w", op, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%s: token-exchange endpoint returned status %d: %s: %w", op, resp.StatusCode, string(body), ErrTokenExchange)
	}
	var out Response
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("%s: unable to decode token-exchange response: %w", op, err)
	}
	if out.AccessToken == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrMissingAccessToken)
	}
	e.logger.Debug("exchanged subject token", "audience", e.baseURL)
	return &out, nil
}

// rewriteIssuer applies the configured hostname alias. Issuers whose
// hostname doesn't match the alias pass through unchanged.
func (e *Exchanger) rewriteIssuer(issuer string) string {
	if e.aliasFrom == "" {
		return issuer
	}
	u, err := url.Parse(issuer)
	if err != nil || u.Hostname() != e.aliasFrom {
		return issuer
	}
	host := e.aliasTo
	if port := u.Port(); port != "" {
		host = net.JoinHostPort(e.aliasTo, port)
	}
	u.Host = host
	return u.String()
}
