// Package smart implements the provider-facing core of a SMART-on-FHIR
// relying party using the OAuth 2.0 Authorization Code Flow with PKCE
// (RFC 7636).
//
// The package is built around three pieces: a Discoverer, which resolves
// and caches a provider's OpenID configuration per issuer base URI; an
// AuthRequest, which captures the one-time state, PKCE verifier and
// parameters of a single authorization attempt; and a Client, which
// composes the authorization redirect URL and exchanges the returned
// authorization code for tokens. Launch-context resolution
// (patient/practitioner identity from the token response) sits on top.
//
// Providers here are public clients: no client secret is ever sent, and
// the authorization code is bound to the client through PKCE instead.
package smart
