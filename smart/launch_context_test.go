package smart

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	"gopkg.in/square/go-jose.v2/jwt"
)

func testTokenWithExtras(t *testing.T, extras map[string]interface{}) *Tk {
	t.Helper()
	require := require.New(t)
	tk, err := NewToken((&oauth2.Token{AccessToken: "test-access-token"}).WithExtra(extras))
	require.NoError(err)
	return tk
}

func TestResolveLaunchContext(t *testing.T) {
	t.Parallel()
	_, priv := TestGenerateKeys(t)
	stdClaims := jwt.Claims{
		Subject:  "alice@example.com",
		Issuer:   "https://ehr.example/fhir",
		Audience: jwt.Audience{"test-client-id"},
		Expiry:   jwt.NewNumericDate(time.Now().Add(5 * time.Minute)),
	}

	t.Run("patient-and-encounter-from-response", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		tk := testTokenWithExtras(t, map[string]interface{}{
			"patient":   "smart-1557780",
			"encounter": "enc-42",
		})
		lc, err := ResolveLaunchContext(tk)
		require.NoError(err)
		assert.Equal("smart-1557780", lc.Patient)
		assert.Equal("enc-42", lc.Encounter)
		assert.Empty(lc.Practitioner)
	})
	t.Run("profile-preferred-over-fhirUser", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		idToken := TestSignJWT(t, priv, stdClaims, map[string]interface{}{"fhirUser": "Practitioner/99"})
		tk := testTokenWithExtras(t, map[string]interface{}{
			"patient":  "smart-1557780",
			"profile":  "Practitioner/55",
			"id_token": idToken,
		})
		lc, err := ResolveLaunchContext(tk)
		require.NoError(err)
		assert.Equal("Practitioner/55", lc.Practitioner)
	})
	t.Run("fhirUser-fallback", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		idToken := TestSignJWT(t, priv, stdClaims, map[string]interface{}{"fhirUser": "Practitioner/99"})
		tk := testTokenWithExtras(t, map[string]interface{}{
			"patient":  "smart-1557780",
			"id_token": idToken,
		})
		lc, err := ResolveLaunchContext(tk)
		require.NoError(err)
		assert.Equal("Practitioner/99", lc.Practitioner)
	})
	t.Run("no-fhirUser-claim", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		idToken := TestSignJWT(t, priv, stdClaims, map[string]interface{}{})
		tk := testTokenWithExtras(t, map[string]interface{}{
			"patient":  "smart-1557780",
			"id_token": idToken,
		})
		lc, err := ResolveLaunchContext(tk)
		require.NoError(err)
		assert.Empty(lc.Practitioner)
	})
	t.Run("no-launch-context", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		tk, err := NewToken(&oauth2.Token{AccessToken: "test-access-token"})
		require.NoError(err)
		lc, err := ResolveLaunchContext(tk)
		require.NoError(err)
		assert.Equal(&LaunchContext{}, lc)
	})
	t.Run("nil-token", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		_, err := ResolveLaunchContext(nil)
		require.Error(err)
		assert.Truef(errors.Is(err, ErrNilParameter), "wanted \"%s\" but got \"%s\"", ErrNilParameter, err)
	})
	t.Run("malformed-id-token", func(t *testing.T) {
		require := require.New(t)
		tk := testTokenWithExtras(t, map[string]interface{}{"id_token": "garbage"})
		_, err := ResolveLaunchContext(tk)
		require.Error(err)
	})
}

func TestExtractClaimFromDirectlyIssuedToken(t *testing.T) {
	t.Parallel()
	_, priv := TestGenerateKeys(t)
	stdClaims := jwt.Claims{
		Subject: "alice@example.com",
		Issuer:  "https://ehr.example/fhir",
	}

	t.Run("string-claim", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		raw := TestSignJWT(t, priv, stdClaims, map[string]interface{}{"fhirUser": "Practitioner/99"})
		got, err := extractClaimFromDirectlyIssuedToken(IdToken(raw), "fhirUser")
		require.NoError(err)
		assert.Equal("Practitioner/99", got)
	})
	t.Run("absent-claim", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		raw := TestSignJWT(t, priv, stdClaims, map[string]interface{}{})
		got, err := extractClaimFromDirectlyIssuedToken(IdToken(raw), "fhirUser")
		require.NoError(err)
		assert.Empty(got)
	})
	t.Run("non-string-claim", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		raw := TestSignJWT(t, priv, stdClaims, map[string]interface{}{"fhirUser": 99})
		_, err := extractClaimFromDirectlyIssuedToken(IdToken(raw), "fhirUser")
		require.Error(err)
		assert.Truef(errors.Is(err, ErrInvalidParameter), "wanted \"%s\" but got \"%s\"", ErrInvalidParameter, err)
	})
	t.Run("empty-token", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		_, err := extractClaimFromDirectlyIssuedToken(IdToken(""), "fhirUser")
		require.Error(err)
		assert.Truef(errors.Is(err, ErrInvalidParameter), "wanted \"%s\" but got \"%s\"", ErrInvalidParameter, err)
	})
}
