package session

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCookieSecret(t *testing.T) []byte {
	t.Helper()
	return []byte("0123456789abcdef0123456789abcdef")
}

// requestWithCookies copies the recorder's Set-Cookie headers onto a
// fresh request, the way a browser would echo them back.
func requestWithCookies(t *testing.T, rec *httptest.ResponseRecorder, target string) *http.Request {
	t.Helper()
	r := httptest.NewRequest(http.MethodGet, target, nil)
	for _, c := range rec.Result().Cookies() {
		r.AddCookie(c)
	}
	return r
}

func TestNewCookieManager(t *testing.T) {
	t.Parallel()
	t.Run("valid", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		c, err := NewCookieManager(testCookieSecret(t))
		require.NoError(err)
		assert.Equal("smartflow-session", c.Name())
	})
	t.Run("secure-name", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		c, err := NewCookieManager(testCookieSecret(t), WithSecureCookies())
		require.NoError(err)
		assert.Equal("__Host-smartflow-session", c.Name())
	})
	t.Run("short-secret", func(t *testing.T) {
		assert := assert.New(t)
		c, err := NewCookieManager([]byte("too-short"))
		assert.Nil(c)
		assert.Truef(errors.Is(err, ErrInvalidParameter), "wanted \"%s\" but got \"%s\"", ErrInvalidParameter, err)
	})
}

func TestCookieManager_roundTrip(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	c, err := NewCookieManager(testCookieSecret(t))
	require.NoError(err)

	rec := httptest.NewRecorder()
	c.Write(rec, "s_abc123")

	cookies := rec.Result().Cookies()
	require.Len(cookies, 1)
	assert.Equal("smartflow-session", cookies[0].Name)
	assert.Equal("/", cookies[0].Path)
	assert.True(cookies[0].HttpOnly)
	assert.Equal(http.SameSiteLaxMode, cookies[0].SameSite)
	assert.Contains(cookies[0].Value, ".")

	id, ok := c.Read(requestWithCookies(t, rec, "/"))
	require.True(ok)
	assert.Equal("s_abc123", id)
}

func TestCookieManager_Read(t *testing.T) {
	t.Parallel()

	t.Run("missing-cookie", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		c, err := NewCookieManager(testCookieSecret(t))
		require.NoError(err)
		id, ok := c.Read(httptest.NewRequest(http.MethodGet, "/", nil))
		assert.False(ok)
		assert.Empty(id)
	})
	t.Run("tampered-id", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		c, err := NewCookieManager(testCookieSecret(t))
		require.NoError(err)

		rec := httptest.NewRecorder()
		c.Write(rec, "s_abc123")
		value := rec.Result().Cookies()[0].Value
		forged := strings.Replace(value, "s_abc123", "s_abc124", 1)

		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.AddCookie(&http.Cookie{Name: c.Name(), Value: forged})
		_, ok := c.Read(r)
		assert.False(ok)
	})
	t.Run("signature-from-other-secret", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		c1, err := NewCookieManager(testCookieSecret(t))
		require.NoError(err)
		c2, err := NewCookieManager([]byte("ffffffffffffffffffffffffffffffff"))
		require.NoError(err)

		rec := httptest.NewRecorder()
		c1.Write(rec, "s_abc123")
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.AddCookie(&http.Cookie{Name: c2.Name(), Value: rec.Result().Cookies()[0].Value})
		_, ok := c2.Read(r)
		assert.False(ok)
	})
	t.Run("garbage-value", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		c, err := NewCookieManager(testCookieSecret(t))
		require.NoError(err)
		for _, value := range []string{"no-dot", ".leading-dot", "id.!!not-base64!!", ""} {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.AddCookie(&http.Cookie{Name: c.Name(), Value: value})
			_, ok := c.Read(r)
			assert.Falsef(ok, "value %q should not verify", value)
		}
	})
}

func TestCookieManager_Clear(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	c, err := NewCookieManager(testCookieSecret(t))
	require.NoError(err)

	rec := httptest.NewRecorder()
	c.Clear(rec)
	cookies := rec.Result().Cookies()
	require.Len(cookies, 1)
	assert.Equal(c.Name(), cookies[0].Name)
	assert.Less(cookies[0].MaxAge, 0)
	assert.Empty(cookies[0].Value)
}
