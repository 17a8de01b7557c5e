package web

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/jupyterhealth/smartflow/exchange"
	sdkhttp "github.com/jupyterhealth/smartflow/sdk/http"
	"github.com/jupyterhealth/smartflow/session"
	"github.com/jupyterhealth/smartflow/smart"
)

// DefaultFHIRScopes is the SMART scope set requested on an EHR launch:
// the launch scopes carry the patient context into the token response,
// openid/profile identify the practitioner, and the resource scopes
// authorize the chart reads downstream.
var DefaultFHIRScopes = []string{
	"user/*.*", "patient/*.read", "openid", "profile", "launch", "launch/patient",
}

// DefaultJHEScopes is the scope set for a direct data-platform login.
var DefaultJHEScopes = []string{"openid"}

// homePath is where every completed flow sends the browser.
const homePath = "/"

// Config carries the collaborators the Handlers route between.
type Config struct {
	// Sessions resolves requests to sessions and persists them.
	Sessions *session.Manager

	// FHIR runs the authorization-code flow against the EHR issuer
	// discovered from the launch request.
	FHIR *smart.Client

	// JHE runs the authorization-code flow against the data platform.
	JHE *smart.Client

	// Exchanger performs the RFC 8693 hop that turns a fresh FHIR
	// access token into a platform access token.
	Exchanger *exchange.Exchanger

	// JHEIssuer is the issuer base a direct platform login discovers
	// against (the platform mounts its authorization server under /o).
	JHEIssuer string

	// JHEProfileURL, when set, is probed with a stored platform bearer
	// token so /jhe_login can skip a login that is still good.
	JHEProfileURL string

	// DefaultFHIRIssuer, when set, serves standalone launches that
	// arrive without an iss parameter.
	DefaultFHIRIssuer string
}

// Handlers implements the flow endpoints. Create one with New and
// register it with Mount.
type Handlers struct {
	sessions  *session.Manager
	fhir      *smart.Client
	jhe       *smart.Client
	exchanger *exchange.Exchanger

	jheIssuer     string
	jheProfileURL string
	defaultIssuer string

	client *http.Client
	logger hclog.Logger
}

// New creates the flow Handlers from their collaborators.
//
// Supported options: WithLogger, WithHTTPClient
func New(c *Config, opt ...Option) (*Handlers, error) {
	const op = "web.New"
	switch {
	case c == nil:
		return nil, fmt.Errorf("%s: missing config: %w", op, ErrNilParameter)
	case c.Sessions == nil:
		return nil, fmt.Errorf("%s: missing session manager: %w", op, ErrNilParameter)
	case c.FHIR == nil:
		return nil, fmt.Errorf("%s: missing FHIR client: %w", op, ErrNilParameter)
	case c.JHE == nil:
		return nil, fmt.Errorf("%s: missing JHE client: %w", op, ErrNilParameter)
	case c.Exchanger == nil:
		return nil, fmt.Errorf("%s: missing token exchanger: %w", op, ErrNilParameter)
	case c.JHEIssuer == "":
		return nil, fmt.Errorf("%s: missing JHE issuer: %w", op, ErrInvalidParameter)
	}
	opts := getHandlersOpts(opt...)
	client := opts.withHTTPClient
	if client == nil {
		var err error
		client, err = sdkhttp.NewClient("")
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}
	return &Handlers{
		sessions:      c.Sessions,
		fhir:          c.FHIR,
		jhe:           c.JHE,
		exchanger:     c.Exchanger,
		jheIssuer:     strings.TrimSuffix(c.JHEIssuer, "/"),
		jheProfileURL: c.JHEProfileURL,
		defaultIssuer: strings.TrimSuffix(c.DefaultFHIRIssuer, "/"),
		client:        client,
		logger:        opts.withLogger,
	}, nil
}

// Mount registers the flow endpoints on mux.
func (h *Handlers) Mount(mux *http.ServeMux) {
	mux.HandleFunc("/launch", h.Launch)
	mux.HandleFunc("/callback", h.Callback)
	mux.HandleFunc("/jhe_login", h.JHELogin)
	mux.HandleFunc("/jhe_callback", h.JHECallback)
	mux.HandleFunc("/logout", h.Logout)
}

// Launch starts the EHR-side flow: it binds a fresh state and PKCE pair
// to a new session, then sends the browser to the issuer's authorization
// endpoint with the SMART launch and aud parameters attached.
func (h *Handlers) Launch(w http.ResponseWriter, r *http.Request) {
	const op = "web.(Handlers).Launch"
	ctx := r.Context()

	iss := strings.TrimSuffix(r.FormValue("iss"), "/")
	if iss == "" {
		iss = h.defaultIssuer
	}
	if iss == "" {
		h.writeError(w, r, fmt.Errorf("%s: %w", op, ErrMissingIssuer))
		return
	}

	// a new launch starts a new session; whatever the browser carried
	// before is replaced, never appended to
	sess, err := h.sessions.Get(ctx, w, r, true)
	if err != nil {
		h.writeError(w, r, fmt.Errorf("%s: %w", op, err))
		return
	}
	sess.IssuerBase = iss

	reqOpts := []smart.Option{smart.WithAuthParam("aud", iss)}
	if launch := r.FormValue("launch"); launch != "" {
		reqOpts = append(reqOpts, smart.WithAuthParam("launch", launch))
	}
	authReq, err := smart.NewAuthRequest(h.sessions.PendingTTL(), reqOpts...)
	if err != nil {
		h.writeError(w, r, fmt.Errorf("%s: %w", op, err))
		return
	}
	authURL, err := h.fhir.AuthURL(ctx, iss, authReq)
	if err != nil {
		h.writeError(w, r, fmt.Errorf("%s: %w", op, err))
		return
	}

	sess.SetPending(session.ProviderFHIR, &session.Pending{
		State:        authReq.State(),
		CodeVerifier: authReq.Verifier().Verifier(),
		CreatedAt:    time.Now(),
	})
	// persist before redirecting; redirecting first could lose the
	// state the callback must validate against
	if err := h.sessions.Save(ctx, sess); err != nil {
		h.writeError(w, r, fmt.Errorf("%s: %w", op, err))
		return
	}
	h.logger.Debug("redirecting to authorization endpoint",
		"provider", session.ProviderFHIR, "issuer", iss, "session_id", sess.ID)
	http.Redirect(w, r, authURL, http.StatusFound)
}

// Callback completes the EHR-side flow: it validates the response
// against the pending attempt, exchanges the code for the FHIR token,
// resolves the launch context, and then bridges to the data platform so
// one login yields both credentials.
func (h *Handlers) Callback(w http.ResponseWriter, r *http.Request) {
	const op = "web.(Handlers).Callback"
	ctx := r.Context()

	// get parameters from either the body or query parameters.
	// FormValue prioritizes body values, if found
	if errParam := r.FormValue("error"); errParam != "" {
		h.providerError(w, r, &AuthenErrorResponse{
			Error:       errParam,
			Description: r.FormValue("error_description"),
			Uri:         r.FormValue("error_uri"),
		})
		return
	}
	code := r.FormValue("code")
	if code == "" {
		h.writeError(w, r, fmt.Errorf("%s: %w", op, ErrMissingCode))
		return
	}
	state := r.FormValue("state")
	if state == "" {
		h.writeError(w, r, fmt.Errorf("%s: %w", op, ErrMissingState))
		return
	}

	sess, authReq, ok := h.claimPending(ctx, w, r, session.ProviderFHIR, op)
	if !ok {
		return
	}
	tk, err := h.fhir.Exchange(ctx, sess.IssuerBase, authReq, state, code)
	if err != nil {
		h.writeError(w, r, fmt.Errorf("%s: %w", op, err))
		return
	}
	launchCtx, err := smart.ResolveLaunchContext(tk)
	if err != nil {
		h.writeError(w, r, fmt.Errorf("%s: resolve launch context: %w", op, err))
		return
	}
	sess.SetToken(session.ProviderFHIR, sessionToken(tk))
	sess.Patient = launchCtx.Patient
	sess.Practitioner = launchCtx.Practitioner
	sess.Encounter = launchCtx.Encounter

	// persist the FHIR login before attempting the bridge: if the hop
	// fails the login still stands and /jhe_login can recover
	if err := h.sessions.Save(ctx, sess); err != nil {
		h.writeError(w, r, fmt.Errorf("%s: %w", op, err))
		return
	}
	h.logger.Debug("completed authorization",
		"provider", session.ProviderFHIR, "session_id", sess.ID, "patient", sess.Patient)

	resp, err := h.exchanger.Exchange(ctx, tk.AccessToken(), sess.IssuerBase)
	if err != nil {
		h.writeError(w, r, fmt.Errorf("%s: %w", op, err))
		return
	}
	sess.SetToken(session.ProviderJHE, exchangedToken(resp))
	if err := h.sessions.Save(ctx, sess); err != nil {
		h.writeError(w, r, fmt.Errorf("%s: %w", op, err))
		return
	}
	h.logger.Debug("completed token exchange",
		"audience", h.exchanger.Audience(), "session_id", sess.ID)
	http.Redirect(w, r, homePath, http.StatusFound)
}

// JHELogin starts (or skips) the direct data-platform flow. A stored
// platform token that still verifies live against the profile endpoint
// short-circuits straight home; anything else starts a fresh
// authorization against the platform's issuer.
func (h *Handlers) JHELogin(w http.ResponseWriter, r *http.Request) {
	const op = "web.(Handlers).JHELogin"
	ctx := r.Context()

	sess, err := h.sessions.Get(ctx, w, r, false)
	if err != nil {
		h.writeError(w, r, fmt.Errorf("%s: %w", op, err))
		return
	}
	if sess == nil {
		h.writeError(w, r, fmt.Errorf("%s: %w", op, ErrNoSession))
		return
	}
	if tok := sess.Token(session.ProviderJHE); tok.Valid() && h.verifyPlatformToken(ctx, tok.AccessToken) {
		h.logger.Debug("platform token still valid, skipping login", "session_id", sess.ID)
		http.Redirect(w, r, homePath, http.StatusFound)
		return
	}

	authReq, err := smart.NewAuthRequest(h.sessions.PendingTTL())
	if err != nil {
		h.writeError(w, r, fmt.Errorf("%s: %w", op, err))
		return
	}
	authURL, err := h.jhe.AuthURL(ctx, h.jheIssuer, authReq)
	if err != nil {
		h.writeError(w, r, fmt.Errorf("%s: %w", op, err))
		return
	}

	sess.SetPending(session.ProviderJHE, &session.Pending{
		State:        authReq.State(),
		CodeVerifier: authReq.Verifier().Verifier(),
		CreatedAt:    time.Now(),
	})
	if err := h.sessions.Save(ctx, sess); err != nil {
		h.writeError(w, r, fmt.Errorf("%s: %w", op, err))
		return
	}
	h.logger.Debug("redirecting to authorization endpoint",
		"provider", session.ProviderJHE, "issuer", h.jheIssuer, "session_id", sess.ID)
	http.Redirect(w, r, authURL, http.StatusFound)
}

// JHECallback completes the direct data-platform flow.
func (h *Handlers) JHECallback(w http.ResponseWriter, r *http.Request) {
	const op = "web.(Handlers).JHECallback"
	ctx := r.Context()

	if errParam := r.FormValue("error"); errParam != "" {
		h.providerError(w, r, &AuthenErrorResponse{
			Error:       errParam,
			Description: r.FormValue("error_description"),
			Uri:         r.FormValue("error_uri"),
		})
		return
	}
	code := r.FormValue("code")
	if code == "" {
		h.writeError(w, r, fmt.Errorf("%s: %w", op, ErrMissingCode))
		return
	}
	state := r.FormValue("state")
	if state == "" {
		h.writeError(w, r, fmt.Errorf("%s: %w", op, ErrMissingState))
		return
	}

	sess, authReq, ok := h.claimPending(ctx, w, r, session.ProviderJHE, op)
	if !ok {
		return
	}
	tk, err := h.jhe.Exchange(ctx, h.jheIssuer, authReq, state, code)
	if err != nil {
		h.writeError(w, r, fmt.Errorf("%s: %w", op, err))
		return
	}
	sess.SetToken(session.ProviderJHE, sessionToken(tk))
	if err := h.sessions.Save(ctx, sess); err != nil {
		h.writeError(w, r, fmt.Errorf("%s: %w", op, err))
		return
	}
	h.logger.Debug("completed authorization",
		"provider", session.ProviderJHE, "session_id", sess.ID)
	http.Redirect(w, r, homePath, http.StatusFound)
}

// Logout ends the session and sends the browser home. Logging out twice
// is fine.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	const op = "web.(Handlers).Logout"
	if err := h.sessions.Logout(r.Context(), w, r); err != nil {
		h.writeError(w, r, fmt.Errorf("%s: %w", op, err))
		return
	}
	http.Redirect(w, r, homePath, http.StatusFound)
}

// claimPending loads the request's session and atomically consumes the
// provider's pending attempt, restoring it as an AuthRequest. The
// attempt is consumed no matter how the rest of the callback goes:
// single-use is what bounds the replay window. On failure it writes the
// response and returns ok=false.
func (h *Handlers) claimPending(ctx context.Context, w http.ResponseWriter, r *http.Request, p session.Provider, op string) (*session.Session, smart.AuthRequest, bool) {
	sess, err := h.sessions.Get(ctx, w, r, false)
	if err != nil {
		h.writeError(w, r, fmt.Errorf("%s: %w", op, err))
		return nil, nil, false
	}
	if sess == nil {
		h.writeError(w, r, fmt.Errorf("%s: %w", op, ErrNoSession))
		return nil, nil, false
	}
	pending, err := h.sessions.ConsumePending(ctx, sess.ID, p)
	switch {
	case errors.Is(err, session.ErrNoPending) || errors.Is(err, session.ErrNotFound):
		h.writeError(w, r, fmt.Errorf("%s: %w", op, ErrNoSession))
		return nil, nil, false
	case err != nil:
		h.writeError(w, r, fmt.Errorf("%s: %w", op, err))
		return nil, nil, false
	}
	// the store dropped the attempt; drop it from our copy too, or the
	// Save after the token exchange would write it back
	sess.ClearPending(p)
	authReq, err := smart.RestoreAuthRequest(pending.State, pending.CodeVerifier, pending.CreatedAt.Add(h.sessions.PendingTTL()))
	if err != nil {
		h.writeError(w, r, fmt.Errorf("%s: %w", op, err))
		return nil, nil, false
	}
	return sess, authReq, true
}

// verifyPlatformToken asks the platform whether a stored bearer token
// still authenticates. Any failure simply means "log in again"; it is
// never an error.
func (h *Handlers) verifyPlatformToken(ctx context.Context, token string) bool {
	if h.jheProfileURL == "" || token == "" {
		return false
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.jheProfileURL, nil)
	if err != nil {
		return false
	}
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := h.client.Do(req)
	if err != nil {
		h.logger.Debug("platform token verification failed", "error", err)
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))
	return resp.StatusCode == http.StatusOK
}

// statusFor maps flow failures onto client (400) or server (500)
// responses. Failures the browser's request caused are the client's;
// provider, network, and store failures are ours.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrMissingIssuer),
		errors.Is(err, ErrMissingCode),
		errors.Is(err, ErrMissingState),
		errors.Is(err, ErrNoSession),
		errors.Is(err, smart.ErrStateMismatch),
		errors.Is(err, smart.ErrExpiredAuthRequest):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("authorization flow failed", "path", r.URL.Path, "error", err)
	} else {
		h.logger.Debug("rejected request", "path", r.URL.Path, "error", err)
	}
	http.Error(w, err.Error(), status)
}

func (h *Handlers) providerError(w http.ResponseWriter, r *http.Request, respErr *AuthenErrorResponse) {
	h.logger.Error("provider returned an authorization error",
		"path", r.URL.Path, "error", respErr.Error, "description", respErr.Description)
	msg := respErr.Description
	if msg == "" {
		msg = respErr.Error
	}
	http.Error(w, fmt.Sprintf("%s: %s", ErrProvider, msg), http.StatusInternalServerError)
}

// sessionToken converts a token-endpoint response into the session's
// stored form.
func sessionToken(tk *smart.Tk) *session.Token {
	return &session.Token{
		AccessToken: string(tk.AccessToken()),
		IDToken:     string(tk.IdToken()),
		TokenType:   tk.StringExtra("token_type"),
		Scope:       tk.StringExtra("scope"),
		Expiry:      tk.Expiry(),
	}
}

// exchangedToken converts a token-exchange response into the session's
// stored form. Expiry and scope are captured when the platform sends
// them even though nothing downstream requires them yet.
func exchangedToken(resp *exchange.Response) *session.Token {
	t := &session.Token{
		AccessToken: string(resp.AccessToken),
		TokenType:   resp.TokenType,
		Scope:       resp.Scope,
	}
	if resp.ExpiresIn > 0 {
		t.Expiry = time.Now().Add(time.Duration(resp.ExpiresIn) * time.Second)
	}
	return t
}
