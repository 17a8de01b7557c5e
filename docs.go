// smartflow provides a collection of related packages for running
// SMART-on-FHIR App Launch flows in a clinical-data viewer: a public
// OAuth 2.0 authorization-code client with PKCE (smart), an RFC 8693
// token-exchange hop to a data platform (exchange), server-side
// session storage for the credentials either flow produces (session),
// and the HTTP handlers that tie the flows together (web).
//
// See README.md
package smartflow
