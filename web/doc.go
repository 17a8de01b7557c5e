// Package web serves the HTTP endpoints of the dual-provider
// authorization flow: /launch and /callback run the SMART-on-FHIR
// authorization-code flow against the EHR's issuer, /jhe_login and
// /jhe_callback run the same flow directly against the data platform,
// and /logout ends the session. A successful FHIR callback also
// performs the token-exchange hop so the session ends up holding both
// providers' credentials after a single login.
//
// Handlers never render data; they only move the browser between
// providers and keep the session record current. Validation failures
// the client caused answer 400; provider and network failures answer
// 500. Nothing is silently swallowed: continuing past a failed state
// check would defeat the CSRF protection the state parameter exists
// for.
package web
