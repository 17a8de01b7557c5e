package smart

import (
	"bytes"
	"encoding/json"
	"encoding/pem"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gopkg.in/square/go-jose.v2/jwt"

	"github.com/jupyterhealth/smartflow/sdk/strutils"
)

// TestProvider is a local TLS server that plays both parties a launch
// flow talks to: an authorization server (discovery, authorization and
// token endpoints) and a data-platform API host (token-exchange and
// profile endpoints). It makes writing tests for complete flows much
// easier.
type TestProvider struct {
	httpServer *httptest.Server
	caCert     string

	t *testing.T

	mu                  sync.Mutex
	clientID            string
	expectedAuthCode    string
	allowedRedirectURIs []string
	replySubject        string
	customClaims        map[string]interface{}
	tokenExtras         map[string]interface{}
	omitIDToken         bool
	disableDiscovery    bool
	issuerPaths         []string
	tokenErrorStatus    int

	exchangeResponse    map[string]interface{}
	exchangeErrorStatus int
	profileErrorStatus  int

	requestCounts    map[string]int
	lastTokenForm    url.Values
	lastExchangeForm url.Values
	lastProfileAuth  string

	ecdsaPublicKey  string
	ecdsaPrivateKey string
}

// StartTestProvider creates a disposable TestProvider on a random local
// port. The server is stopped via t.Cleanup.
func StartTestProvider(t *testing.T) *TestProvider {
	t.Helper()
	require := require.New(t)

	p := &TestProvider{
		t: t,
		allowedRedirectURIs: []string{
			"https://example.com/callback",
		},
		replySubject:  "alice@example.com",
		requestCounts: map[string]int{},
	}
	p.ecdsaPublicKey, p.ecdsaPrivateKey = TestGenerateKeys(t)

	p.httpServer = httptest.NewUnstartedServer(p)
	p.httpServer.Config.ErrorLog = log.New(io.Discard, "", 0)
	p.httpServer.StartTLS()
	t.Cleanup(p.httpServer.Close)

	cert := p.httpServer.Certificate()

	var buf bytes.Buffer
	err := pem.Encode(&buf, &pem.Block{Type: "CERTIFICATE", Bytes: cert.Raw})
	require.NoError(err)
	p.caCert = buf.String()

	return p
}

// Stop stops the running TestProvider.
func (p *TestProvider) Stop() {
	p.httpServer.Close()
}

// Addr returns the current base URL for the test provider's running
// webserver.
func (p *TestProvider) Addr() string { return p.httpServer.URL }

// CACert returns the pem-encoded CA certificate used by the test
// provider's HTTPS server.
func (p *TestProvider) CACert() string { return p.caCert }

// SigningKeys returns the test provider's pem-encoded keys used to sign
// JWTs.
func (p *TestProvider) SigningKeys() (pub, priv string) {
	return p.ecdsaPublicKey, p.ecdsaPrivateKey
}

// SetClientID configures the client id embedded as the audience of
// issued id_tokens.
func (p *TestProvider) SetClientID(clientID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clientID = clientID
}

// SetExpectedAuthCode configures the auth code to return from /auth and
// the allowed auth code for /token.
func (p *TestProvider) SetExpectedAuthCode(code string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.expectedAuthCode = code
}

// SetAllowedRedirectURIs allows you to configure the allowed redirect
// URIs for the flow. If not configured a sample of
// "https://example.com/callback" is used.
func (p *TestProvider) SetAllowedRedirectURIs(uris []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.allowedRedirectURIs = uris
}

// SetCustomClaims lets you set claims to return in the id_token issued
// by the token endpoint, for example a fhirUser reference.
func (p *TestProvider) SetCustomClaims(customClaims map[string]interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.customClaims = customClaims
}

// SetTokenResponseExtras merges extra members into the token endpoint's
// JSON response, overriding defaults with the same name. Launch context
// members like "patient" go here.
func (p *TestProvider) SetTokenResponseExtras(extras map[string]interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tokenExtras = extras
}

// OmitIDTokens forces the /token endpoint to not return an id_token.
func (p *TestProvider) OmitIDTokens() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.omitIDToken = true
}

// SetDisableDiscovery makes every discovery document path return 404.
func (p *TestProvider) SetDisableDiscovery(disable bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.disableDiscovery = disable
}

// SetIssuerPaths configures sub-paths (e.g. "/fhir") that also serve the
// discovery document, for issuers that live below the host root.
func (p *TestProvider) SetIssuerPaths(paths ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.issuerPaths = paths
}

// SetTokenErrorStatus makes the /token endpoint fail with the given
// status for otherwise valid requests. Zero restores normal behavior.
func (p *TestProvider) SetTokenErrorStatus(statusCode int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tokenErrorStatus = statusCode
}

// SetExchangeResponse merges extra members into the token-exchange
// endpoint's JSON response, overriding defaults with the same name.
func (p *TestProvider) SetExchangeResponse(resp map[string]interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.exchangeResponse = resp
}

// SetExchangeErrorStatus makes the token-exchange endpoint fail with the
// given status. Zero restores normal behavior.
func (p *TestProvider) SetExchangeErrorStatus(statusCode int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.exchangeErrorStatus = statusCode
}

// SetProfileErrorStatus makes the profile endpoint fail with the given
// status. Zero restores normal behavior.
func (p *TestProvider) SetProfileErrorStatus(statusCode int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.profileErrorStatus = statusCode
}

// RequestCount reports how many requests the given path has received.
func (p *TestProvider) RequestCount(path string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.requestCounts[path]
}

// LastTokenRequest returns the form values of the most recent request to
// the /token endpoint.
func (p *TestProvider) LastTokenRequest() url.Values {
	p.mu.Lock()
	defer p.mu.Unlock()
	return copyValues(p.lastTokenForm)
}

// LastExchangeRequest returns the form values of the most recent request
// to the token-exchange endpoint.
func (p *TestProvider) LastExchangeRequest() url.Values {
	p.mu.Lock()
	defer p.mu.Unlock()
	return copyValues(p.lastExchangeForm)
}

// LastProfileAuthorization returns the Authorization header of the most
// recent request to the profile endpoint.
func (p *TestProvider) LastProfileAuthorization() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastProfileAuth
}

func (p *TestProvider) writeJSON(w http.ResponseWriter, out interface{}) error {
	enc := json.NewEncoder(w)
	return enc.Encode(out)
}

func (p *TestProvider) writeAuthErrorResponse(w http.ResponseWriter, req *http.Request, errorCode, errorMessage string) {
	qv := req.URL.Query()

	redirectURI := qv.Get("redirect_uri") +
		"?state=" + url.QueryEscape(qv.Get("state")) +
		"&error=" + url.QueryEscape(errorCode)

	if errorMessage != "" {
		redirectURI += "&error_description=" + url.QueryEscape(errorMessage)
	}

	http.Redirect(w, req, redirectURI, http.StatusFound)
}

func (p *TestProvider) writeTokenErrorResponse(w http.ResponseWriter, statusCode int, errorCode, errorMessage string) error {
	body := struct {
		Code string `json:"error"`
		Desc string `json:"error_description,omitempty"`
	}{
		Code: errorCode,
		Desc: errorMessage,
	}

	w.WriteHeader(statusCode)
	return p.writeJSON(w, &body)
}

func (p *TestProvider) isDiscoveryPath(path string) bool {
	if path == WellKnownPath {
		return true
	}
	for _, prefix := range p.issuerPaths {
		if path == prefix+WellKnownPath {
			return true
		}
	}
	return false
}

// ServeHTTP implements the test provider's http.Handler.
func (p *TestProvider) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.t.Helper()

	p.requestCounts[req.URL.Path]++

	w.Header().Set("Content-Type", "application/json")

	if p.isDiscoveryPath(req.URL.Path) {
		if req.Method != "GET" {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if p.disableDiscovery {
			w.WriteHeader(http.StatusNotFound)
			return
		}

		reply := struct {
			Issuer        string `json:"issuer"`
			AuthEndpoint  string `json:"authorization_endpoint"`
			TokenEndpoint string `json:"token_endpoint"`
		}{
			Issuer:        p.Addr(),
			AuthEndpoint:  p.Addr() + "/auth",
			TokenEndpoint: p.Addr() + "/token",
		}
		_ = p.writeJSON(w, &reply)
		return
	}

	switch req.URL.Path {
	case "/auth":
		if req.Method != "GET" {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		qv := req.URL.Query()

		if qv.Get("response_type") != "code" {
			p.writeAuthErrorResponse(w, req, "unsupported_response_type", "")
			return
		}

		if p.expectedAuthCode == "" {
			p.writeAuthErrorResponse(w, req, "access_denied", "")
			return
		}

		state := qv.Get("state")
		if state == "" {
			p.writeAuthErrorResponse(w, req, "invalid_request", "missing state parameter")
			return
		}

		redirectURI := qv.Get("redirect_uri")
		if redirectURI == "" {
			p.writeAuthErrorResponse(w, req, "invalid_request", "missing redirect_uri parameter")
			return
		}

		redirectURI += "?state=" + url.QueryEscape(state) +
			"&code=" + url.QueryEscape(p.expectedAuthCode)

		http.Redirect(w, req, redirectURI, http.StatusFound)

	case "/token":
		if req.Method != "POST" {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if err := req.ParseForm(); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		p.lastTokenForm = copyValues(req.PostForm)

		switch {
		case req.PostForm.Get("grant_type") != "authorization_code":
			_ = p.writeTokenErrorResponse(w, http.StatusBadRequest, "invalid_request", "bad grant_type")
			return
		case !strutils.StrListContains(p.allowedRedirectURIs, req.PostForm.Get("redirect_uri")):
			_ = p.writeTokenErrorResponse(w, http.StatusBadRequest, "invalid_request", "redirect_uri is not allowed")
			return
		case req.PostForm.Get("code") != p.expectedAuthCode:
			_ = p.writeTokenErrorResponse(w, http.StatusUnauthorized, "invalid_grant", "unexpected auth code")
			return
		}
		if p.tokenErrorStatus != 0 {
			_ = p.writeTokenErrorResponse(w, p.tokenErrorStatus, "invalid_request", "token endpoint disabled")
			return
		}

		reply := map[string]interface{}{
			"access_token": "test-access-token",
			"token_type":   "Bearer",
			"expires_in":   3600,
		}
		if !p.omitIDToken {
			stdClaims := jwt.Claims{
				Subject:   p.replySubject,
				Issuer:    p.Addr(),
				NotBefore: jwt.NewNumericDate(time.Now().Add(-5 * time.Second)),
				Expiry:    jwt.NewNumericDate(time.Now().Add(5 * time.Minute)),
				Audience:  jwt.Audience{p.clientID},
			}
			reply["id_token"] = TestSignJWT(p.t, p.ecdsaPrivateKey, stdClaims, p.customClaims)
		}
		for k, v := range p.tokenExtras {
			reply[k] = v
		}
		_ = p.writeJSON(w, reply)

	case "/o/token-exchange":
		if req.Method != "POST" {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if err := req.ParseForm(); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		p.lastExchangeForm = copyValues(req.PostForm)

		if p.exchangeErrorStatus != 0 {
			w.WriteHeader(p.exchangeErrorStatus)
			_ = p.writeJSON(w, map[string]interface{}{
				"detail": "token exchange refused",
			})
			return
		}

		reply := map[string]interface{}{
			"access_token": "test-exchanged-token",
			"token_type":   "Bearer",
			"expires_in":   3600,
		}
		for k, v := range p.exchangeResponse {
			reply[k] = v
		}
		_ = p.writeJSON(w, reply)

	case "/api/v1/users/profile":
		if req.Method != "GET" {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		p.lastProfileAuth = req.Header.Get("Authorization")

		if p.profileErrorStatus != 0 {
			w.WriteHeader(p.profileErrorStatus)
			_ = p.writeJSON(w, map[string]interface{}{
				"detail": "Authentication credentials were not provided.",
			})
			return
		}
		_ = p.writeJSON(w, map[string]interface{}{
			"id":    1,
			"email": p.replySubject,
		})

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func copyValues(v url.Values) url.Values {
	out := make(url.Values, len(v))
	for k, vs := range v {
		out[k] = append([]string(nil), vs...)
	}
	return out
}
