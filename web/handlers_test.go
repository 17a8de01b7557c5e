package web

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jupyterhealth/smartflow/exchange"
	sdkhttp "github.com/jupyterhealth/smartflow/sdk/http"
	"github.com/jupyterhealth/smartflow/session"
	"github.com/jupyterhealth/smartflow/smart"
)

type testEnv struct {
	tp       *smart.TestProvider
	store    *session.MemoryStore
	sessions *session.Manager
	mux      *http.ServeMux
}

// newTestEnv wires the handlers against a running test provider that
// plays both the EHR issuer and the data platform. cfgEdit may adjust
// the Config before New; sessOpt feeds the session manager.
func newTestEnv(t *testing.T, cfgEdit func(*Config), sessOpt ...session.Option) *testEnv {
	t.Helper()
	require := require.New(t)

	tp := smart.StartTestProvider(t)
	tp.SetClientID("test-client-id")
	tp.SetExpectedAuthCode("test-code-1234")
	tp.SetAllowedRedirectURIs([]string{
		"https://example.com/callback",
		"https://example.com/jhe_callback",
	})

	store := session.NewMemoryStore()
	t.Cleanup(store.Close)
	cookies, err := session.NewCookieManager([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(err)
	sessions, err := session.NewManager(store, cookies, sessOpt...)
	require.NoError(err)

	fhirCfg, err := smart.NewConfig("test-client-id", "https://example.com/callback",
		smart.WithScopes(DefaultFHIRScopes...),
		smart.WithProviderCA(tp.CACert()))
	require.NoError(err)
	fhir, err := smart.NewClient(fhirCfg)
	require.NoError(err)

	jheCfg, err := smart.NewConfig("jhe-client-id", "https://example.com/jhe_callback",
		smart.WithScopes(DefaultJHEScopes...),
		smart.WithProviderCA(tp.CACert()))
	require.NoError(err)
	jhe, err := smart.NewClient(jheCfg)
	require.NoError(err)

	ex, err := exchange.NewExchanger(tp.Addr(), exchange.WithProviderCA(tp.CACert()))
	require.NoError(err)

	probe, err := sdkhttp.NewClient(tp.CACert())
	require.NoError(err)

	cfg := &Config{
		Sessions:      sessions,
		FHIR:          fhir,
		JHE:           jhe,
		Exchanger:     ex,
		JHEIssuer:     tp.Addr(),
		JHEProfileURL: tp.Addr() + "/api/v1/users/profile",
	}
	if cfgEdit != nil {
		cfgEdit(cfg)
	}
	h, err := New(cfg, WithHTTPClient(probe))
	require.NoError(err)

	mux := http.NewServeMux()
	h.Mount(mux)
	return &testEnv{tp: tp, store: store, sessions: sessions, mux: mux}
}

func (e *testEnv) do(r *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.mux.ServeHTTP(rec, r)
	return rec
}

// withCookies echoes rec's cookies onto a fresh GET request, the way a
// browser would on the redirect back from the provider.
func withCookies(t *testing.T, rec *httptest.ResponseRecorder, target string) *http.Request {
	t.Helper()
	r := httptest.NewRequest(http.MethodGet, target, nil)
	for _, c := range rec.Result().Cookies() {
		r.AddCookie(c)
	}
	return r
}

// launch drives /launch for the test provider's issuer and returns the
// response recorder (whose cookie identifies the session) and the
// authorization redirect.
func (e *testEnv) launch(t *testing.T) (*httptest.ResponseRecorder, *url.URL) {
	t.Helper()
	rec := e.do(httptest.NewRequest(http.MethodGet, "/launch?launch=abc123&iss="+url.QueryEscape(e.tp.Addr()), nil))
	require.Equal(t, http.StatusFound, rec.Code, rec.Body.String())
	loc, err := rec.Result().Location()
	require.NoError(t, err)
	return rec, loc
}

// session loads the session the recorder's cookie identifies.
func (e *testEnv) session(t *testing.T, rec *httptest.ResponseRecorder) *session.Session {
	t.Helper()
	sess, err := e.sessions.Get(context.Background(), httptest.NewRecorder(), withCookies(t, rec, "/"), false)
	require.NoError(t, err)
	require.NotNil(t, sess)
	return sess
}

func TestNew(t *testing.T) {
	t.Parallel()

	store := session.NewMemoryStore()
	t.Cleanup(store.Close)
	cookies, err := session.NewCookieManager([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)
	sessions, err := session.NewManager(store, cookies)
	require.NoError(t, err)

	fhirCfg, err := smart.NewConfig("test-client-id", "https://example.com/callback")
	require.NoError(t, err)
	fhir, err := smart.NewClient(fhirCfg)
	require.NoError(t, err)
	jheCfg, err := smart.NewConfig("jhe-client-id", "https://example.com/jhe_callback")
	require.NoError(t, err)
	jhe, err := smart.NewClient(jheCfg)
	require.NoError(t, err)
	ex, err := exchange.NewExchanger("https://jhe.example")
	require.NoError(t, err)

	tests := []struct {
		name      string
		cfg       *Config
		wantIsErr error
	}{
		{
			name: "valid",
			cfg: &Config{
				Sessions:  sessions,
				FHIR:      fhir,
				JHE:       jhe,
				Exchanger: ex,
				JHEIssuer: "https://jhe.example/o",
			},
		},
		{
			name:      "nil-config",
			cfg:       nil,
			wantIsErr: ErrNilParameter,
		},
		{
			name:      "missing-sessions",
			cfg:       &Config{FHIR: fhir, JHE: jhe, Exchanger: ex, JHEIssuer: "https://jhe.example/o"},
			wantIsErr: ErrNilParameter,
		},
		{
			name:      "missing-fhir-client",
			cfg:       &Config{Sessions: sessions, JHE: jhe, Exchanger: ex, JHEIssuer: "https://jhe.example/o"},
			wantIsErr: ErrNilParameter,
		},
		{
			name:      "missing-jhe-client",
			cfg:       &Config{Sessions: sessions, FHIR: fhir, Exchanger: ex, JHEIssuer: "https://jhe.example/o"},
			wantIsErr: ErrNilParameter,
		},
		{
			name:      "missing-exchanger",
			cfg:       &Config{Sessions: sessions, FHIR: fhir, JHE: jhe, JHEIssuer: "https://jhe.example/o"},
			wantIsErr: ErrNilParameter,
		},
		{
			name:      "missing-jhe-issuer",
			cfg:       &Config{Sessions: sessions, FHIR: fhir, JHE: jhe, Exchanger: ex},
			wantIsErr: ErrInvalidParameter,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert, require := assert.New(t), require.New(t)
			got, err := New(tt.cfg)
			if tt.wantIsErr != nil {
				require.Error(err)
				assert.Truef(errors.Is(err, tt.wantIsErr), "wanted \"%s\" but got \"%s\"", tt.wantIsErr, err)
				return
			}
			require.NoError(err)
			assert.NotNil(got)
		})
	}
}

func TestHandlers_Launch(t *testing.T) {
	t.Parallel()

	t.Run("redirect-carries-launch-params", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		e := newTestEnv(t, nil)

		rec, loc := e.launch(t)
		assert.Equal("/auth", loc.Path)

		q := loc.Query()
		assert.Equal("code", q.Get("response_type"))
		assert.Equal("test-client-id", q.Get("client_id"))
		assert.Equal("https://example.com/callback", q.Get("redirect_uri"))
		assert.Equal(strings.Join(DefaultFHIRScopes, " "), q.Get("scope"))
		assert.True(strings.HasPrefix(q.Get("state"), "st_"))
		assert.Len(q.Get("code_challenge"), 43)
		assert.Equal("S256", q.Get("code_challenge_method"))
		assert.Equal("abc123", q.Get("launch"))
		assert.Equal(e.tp.Addr(), q.Get("aud"))

		sess := e.session(t, rec)
		assert.Equal(e.tp.Addr(), sess.IssuerBase)
		pending := sess.Pending(session.ProviderFHIR)
		require.NotNil(pending)
		assert.Equal(q.Get("state"), pending.State)
		assert.NotEmpty(pending.CodeVerifier)
	})
	t.Run("missing-iss", func(t *testing.T) {
		assert := assert.New(t)
		e := newTestEnv(t, nil)
		rec := e.do(httptest.NewRequest(http.MethodGet, "/launch", nil))
		assert.Equal(http.StatusBadRequest, rec.Code)
		assert.Contains(rec.Body.String(), "iss parameter is missing")
	})
	t.Run("default-issuer-serves-standalone-launch", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		e := newTestEnv(t, func(c *Config) {
			c.DefaultFHIRIssuer = c.JHEIssuer // the test provider's base
		})
		rec := e.do(httptest.NewRequest(http.MethodGet, "/launch", nil))
		require.Equal(http.StatusFound, rec.Code, rec.Body.String())
		loc, err := rec.Result().Location()
		require.NoError(err)
		assert.Equal(e.tp.Addr(), loc.Query().Get("aud"))
		assert.Empty(loc.Query().Get("launch"))
	})
	t.Run("new-launch-replaces-session", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		e := newTestEnv(t, nil)

		rec1, loc1 := e.launch(t)
		first := e.session(t, rec1)

		rec2 := e.do(withCookies(t, rec1, "/launch?launch=abc123&iss="+url.QueryEscape(e.tp.Addr())))
		require.Equal(http.StatusFound, rec2.Code)
		loc2, err := rec2.Result().Location()
		require.NoError(err)

		second := e.session(t, rec2)
		assert.NotEqual(first.ID, second.ID)
		assert.NotEqual(loc1.Query().Get("state"), loc2.Query().Get("state"))

		_, err = e.store.Get(context.Background(), first.ID)
		assert.Truef(errors.Is(err, session.ErrNotFound), "wanted \"%s\" but got \"%s\"", session.ErrNotFound, err)
	})
	t.Run("discovery-failure", func(t *testing.T) {
		assert := assert.New(t)
		e := newTestEnv(t, nil)
		e.tp.SetDisableDiscovery(true)
		rec := e.do(httptest.NewRequest(http.MethodGet, "/launch?iss="+url.QueryEscape(e.tp.Addr()), nil))
		assert.Equal(http.StatusInternalServerError, rec.Code)
	})
}

func TestHandlers_Callback(t *testing.T) {
	t.Parallel()

	t.Run("completes-login-and-bridge", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		e := newTestEnv(t, nil)
		e.tp.SetTokenResponseExtras(map[string]interface{}{
			"access_token": "tok1",
			"patient":      "Patient/42",
			"encounter":    "Encounter/9",
		})
		e.tp.SetCustomClaims(map[string]interface{}{"fhirUser": "Practitioner/7"})

		rec, loc := e.launch(t)
		state := loc.Query().Get("state")

		cbRec := e.do(withCookies(t, rec, "/callback?code=test-code-1234&state="+url.QueryEscape(state)))
		require.Equal(http.StatusFound, cbRec.Code, cbRec.Body.String())
		assert.Equal(homePath, cbRec.Result().Header.Get("Location"))

		sess := e.session(t, rec)
		require.NotNil(sess.Token(session.ProviderFHIR))
		assert.Equal("tok1", sess.Token(session.ProviderFHIR).AccessToken)
		assert.NotEmpty(sess.Token(session.ProviderFHIR).IDToken)
		assert.Equal("Patient/42", sess.Patient)
		assert.Equal("Practitioner/7", sess.Practitioner)
		assert.Equal("Encounter/9", sess.Encounter)
		assert.Nil(sess.Pending(session.ProviderFHIR))

		// the bridge ran with the fresh token as subject
		require.NotNil(sess.Token(session.ProviderJHE))
		assert.Equal("test-exchanged-token", sess.Token(session.ProviderJHE).AccessToken)
		form := e.tp.LastExchangeRequest()
		require.NotNil(form)
		assert.Equal("tok1", form.Get("subject_token"))
		assert.Equal(exchange.GrantType, form.Get("grant_type"))
		assert.Equal(exchange.AccessTokenType, form.Get("subject_token_type"))
		assert.Equal(exchange.AccessTokenType, form.Get("requested_token_type"))
		assert.Equal(e.tp.Addr(), form.Get("audience"))
		assert.Equal(e.tp.Addr(), form.Get("iss"))

		// and the code exchange carried the PKCE verifier
		tokenForm := e.tp.LastTokenRequest()
		require.NotNil(tokenForm)
		assert.Equal("test-code-1234", tokenForm.Get("code"))
		assert.NotEmpty(tokenForm.Get("code_verifier"))
	})
	t.Run("replay-fails", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		e := newTestEnv(t, nil)

		rec, loc := e.launch(t)
		target := "/callback?code=test-code-1234&state=" + url.QueryEscape(loc.Query().Get("state"))

		first := e.do(withCookies(t, rec, target))
		require.Equal(http.StatusFound, first.Code, first.Body.String())

		second := e.do(withCookies(t, rec, target))
		assert.Equal(http.StatusBadRequest, second.Code)
		assert.Contains(second.Body.String(), "no pending authorization")
	})
	t.Run("state-mismatch-consumes-pending", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		e := newTestEnv(t, nil)

		rec, loc := e.launch(t)
		state := loc.Query().Get("state")

		wrong := e.do(withCookies(t, rec, "/callback?code=test-code-1234&state=st_wrong"))
		assert.Equal(http.StatusBadRequest, wrong.Code)
		assert.Contains(wrong.Body.String(), "state")

		// the attempt was burned by the mismatch; the real state cannot
		// be replayed afterwards
		replay := e.do(withCookies(t, rec, "/callback?code=test-code-1234&state="+url.QueryEscape(state)))
		assert.Equal(http.StatusBadRequest, replay.Code)
		assert.Contains(replay.Body.String(), "no pending authorization")

		sess := e.session(t, rec)
		require.NotNil(sess)
		assert.Nil(sess.Token(session.ProviderFHIR))
	})
	t.Run("provider-error-param", func(t *testing.T) {
		assert := assert.New(t)
		e := newTestEnv(t, nil)
		rec := e.do(httptest.NewRequest(http.MethodGet, "/callback?error=access_denied&error_description=user+denied", nil))
		assert.Equal(http.StatusInternalServerError, rec.Code)
		assert.Contains(rec.Body.String(), "provider returned an authorization error")
		assert.Contains(rec.Body.String(), "user denied")
	})
	t.Run("missing-code", func(t *testing.T) {
		assert := assert.New(t)
		e := newTestEnv(t, nil)
		rec := e.do(httptest.NewRequest(http.MethodGet, "/callback?state=st_1", nil))
		assert.Equal(http.StatusBadRequest, rec.Code)
		assert.Contains(rec.Body.String(), "authorization code is missing")
	})
	t.Run("missing-state", func(t *testing.T) {
		assert := assert.New(t)
		e := newTestEnv(t, nil)
		rec := e.do(httptest.NewRequest(http.MethodGet, "/callback?code=xyz", nil))
		assert.Equal(http.StatusBadRequest, rec.Code)
		assert.Contains(rec.Body.String(), "state parameter is missing")
	})
	t.Run("no-session", func(t *testing.T) {
		assert := assert.New(t)
		e := newTestEnv(t, nil)
		rec := e.do(httptest.NewRequest(http.MethodGet, "/callback?code=xyz&state=st_1", nil))
		assert.Equal(http.StatusBadRequest, rec.Code)
		assert.Contains(rec.Body.String(), "no pending authorization")
	})
	t.Run("expired-pending", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		e := newTestEnv(t, nil)
		ctx := context.Background()

		rec, loc := e.launch(t)
		sess := e.session(t, rec)
		pending := sess.Pending(session.ProviderFHIR)
		require.NotNil(pending)
		pending.CreatedAt = time.Now().Add(-time.Hour)
		require.NoError(e.sessions.Save(ctx, sess))

		cbRec := e.do(withCookies(t, rec, "/callback?code=test-code-1234&state="+url.QueryEscape(loc.Query().Get("state"))))
		require.Equal(http.StatusBadRequest, cbRec.Code)
		assert.Contains(cbRec.Body.String(), "expired")
	})
	t.Run("token-endpoint-failure", func(t *testing.T) {
		assert := assert.New(t)
		e := newTestEnv(t, nil)
		e.tp.SetTokenErrorStatus(http.StatusServiceUnavailable)

		rec, loc := e.launch(t)
		cbRec := e.do(withCookies(t, rec, "/callback?code=test-code-1234&state="+url.QueryEscape(loc.Query().Get("state"))))
		assert.Equal(http.StatusInternalServerError, cbRec.Code)
	})
	t.Run("bridge-failure-keeps-fhir-login", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		e := newTestEnv(t, nil)
		e.tp.SetExchangeErrorStatus(http.StatusForbidden)

		rec, loc := e.launch(t)
		cbRec := e.do(withCookies(t, rec, "/callback?code=test-code-1234&state="+url.QueryEscape(loc.Query().Get("state"))))
		assert.Equal(http.StatusInternalServerError, cbRec.Code)

		// the EHR login survived; /jhe_login can recover from here
		sess := e.session(t, rec)
		require.NotNil(sess.Token(session.ProviderFHIR))
		assert.Equal("test-access-token", sess.Token(session.ProviderFHIR).AccessToken)
		assert.Nil(sess.Token(session.ProviderJHE))
	})
}

func TestHandlers_JHELogin(t *testing.T) {
	t.Parallel()

	t.Run("no-session", func(t *testing.T) {
		assert := assert.New(t)
		e := newTestEnv(t, nil)
		rec := e.do(httptest.NewRequest(http.MethodGet, "/jhe_login", nil))
		assert.Equal(http.StatusBadRequest, rec.Code)
		assert.Contains(rec.Body.String(), "no pending authorization")
	})
	t.Run("starts-platform-flow", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		e := newTestEnv(t, nil)

		rec, _ := e.launch(t)
		jlRec := e.do(withCookies(t, rec, "/jhe_login"))
		require.Equal(http.StatusFound, jlRec.Code, jlRec.Body.String())
		loc, err := jlRec.Result().Location()
		require.NoError(err)

		q := loc.Query()
		assert.Equal("/auth", loc.Path)
		assert.Equal("jhe-client-id", q.Get("client_id"))
		assert.Equal("https://example.com/jhe_callback", q.Get("redirect_uri"))
		assert.Equal("openid", q.Get("scope"))
		assert.True(strings.HasPrefix(q.Get("state"), "st_"))

		sess := e.session(t, rec)
		pending := sess.Pending(session.ProviderJHE)
		require.NotNil(pending)
		assert.Equal(q.Get("state"), pending.State)
		// the EHR-side attempt is a separate slot and stays put
		assert.NotNil(sess.Pending(session.ProviderFHIR))
	})
	t.Run("skips-when-token-verifies", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		e := newTestEnv(t, nil)
		ctx := context.Background()

		rec, _ := e.launch(t)
		sess := e.session(t, rec)
		sess.SetToken(session.ProviderJHE, &session.Token{AccessToken: "platform-token"})
		require.NoError(e.sessions.Save(ctx, sess))

		jlRec := e.do(withCookies(t, rec, "/jhe_login"))
		require.Equal(http.StatusFound, jlRec.Code)
		assert.Equal(homePath, jlRec.Result().Header.Get("Location"))
		assert.Equal("Bearer platform-token", e.tp.LastProfileAuthorization())

		// no fresh attempt was started
		assert.Nil(e.session(t, rec).Pending(session.ProviderJHE))
	})
	t.Run("relogs-when-platform-rejects-token", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		e := newTestEnv(t, nil)
		e.tp.SetProfileErrorStatus(http.StatusUnauthorized)
		ctx := context.Background()

		rec, _ := e.launch(t)
		sess := e.session(t, rec)
		sess.SetToken(session.ProviderJHE, &session.Token{AccessToken: "stale-token"})
		require.NoError(e.sessions.Save(ctx, sess))

		jlRec := e.do(withCookies(t, rec, "/jhe_login"))
		require.Equal(http.StatusFound, jlRec.Code)
		loc, err := jlRec.Result().Location()
		require.NoError(err)
		assert.Equal("/auth", loc.Path)
	})
	t.Run("relogs-without-profile-url", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		e := newTestEnv(t, func(c *Config) { c.JHEProfileURL = "" })
		ctx := context.Background()

		rec, _ := e.launch(t)
		sess := e.session(t, rec)
		sess.SetToken(session.ProviderJHE, &session.Token{AccessToken: "unverifiable"})
		require.NoError(e.sessions.Save(ctx, sess))

		jlRec := e.do(withCookies(t, rec, "/jhe_login"))
		require.Equal(http.StatusFound, jlRec.Code)
		loc, err := jlRec.Result().Location()
		require.NoError(err)
		assert.Equal("/auth", loc.Path)
	})
}

func TestHandlers_JHECallback(t *testing.T) {
	t.Parallel()

	// startJHEFlow drives /launch then /jhe_login, returning the launch
	// recorder (cookie holder) and the platform state.
	startJHEFlow := func(t *testing.T, e *testEnv) (*httptest.ResponseRecorder, string) {
		t.Helper()
		rec, _ := e.launch(t)
		jlRec := e.do(withCookies(t, rec, "/jhe_login"))
		require.Equal(t, http.StatusFound, jlRec.Code, jlRec.Body.String())
		loc, err := jlRec.Result().Location()
		require.NoError(t, err)
		return rec, loc.Query().Get("state")
	}

	t.Run("completes-platform-login", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		e := newTestEnv(t, nil)

		rec, state := startJHEFlow(t, e)
		cbRec := e.do(withCookies(t, rec, "/jhe_callback?code=test-code-1234&state="+url.QueryEscape(state)))
		require.Equal(http.StatusFound, cbRec.Code, cbRec.Body.String())
		assert.Equal(homePath, cbRec.Result().Header.Get("Location"))

		sess := e.session(t, rec)
		require.NotNil(sess.Token(session.ProviderJHE))
		assert.Equal("test-access-token", sess.Token(session.ProviderJHE).AccessToken)
		assert.Nil(sess.Pending(session.ProviderJHE))

		form := e.tp.LastTokenRequest()
		require.NotNil(form)
		assert.Equal("jhe-client-id", form.Get("client_id"))
		assert.Equal("https://example.com/jhe_callback", form.Get("redirect_uri"))
		assert.NotEmpty(form.Get("code_verifier"))
	})
	t.Run("replay-fails", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		e := newTestEnv(t, nil)

		rec, state := startJHEFlow(t, e)
		target := "/jhe_callback?code=test-code-1234&state=" + url.QueryEscape(state)

		first := e.do(withCookies(t, rec, target))
		require.Equal(http.StatusFound, first.Code, first.Body.String())

		second := e.do(withCookies(t, rec, target))
		assert.Equal(http.StatusBadRequest, second.Code)
		assert.Contains(second.Body.String(), "no pending authorization")
	})
	t.Run("no-session", func(t *testing.T) {
		assert := assert.New(t)
		e := newTestEnv(t, nil)
		rec := e.do(httptest.NewRequest(http.MethodGet, "/jhe_callback?code=xyz&state=st_1", nil))
		assert.Equal(http.StatusBadRequest, rec.Code)
	})
}

func TestHandlers_Logout(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	e := newTestEnv(t, nil)
	ctx := context.Background()

	rec, _ := e.launch(t)
	sess := e.session(t, rec)

	loRec := e.do(withCookies(t, rec, "/logout"))
	require.Equal(http.StatusFound, loRec.Code)
	assert.Equal(homePath, loRec.Result().Header.Get("Location"))

	_, err := e.store.Get(ctx, sess.ID)
	assert.Truef(errors.Is(err, session.ErrNotFound), "wanted \"%s\" but got \"%s\"", session.ErrNotFound, err)

	cookies := loRec.Result().Cookies()
	require.Len(cookies, 1)
	assert.Less(cookies[0].MaxAge, 0)

	// logging out again with the same stale cookie still succeeds
	again := e.do(withCookies(t, rec, "/logout"))
	assert.Equal(http.StatusFound, again.Code)
}
