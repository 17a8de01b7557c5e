package smart

import (
	"fmt"
)

// LaunchContext is the SMART-on-FHIR launch context a provider returns
// alongside an EHR-launched token: the identifiers of the patient (and
// sometimes encounter) the app was launched in the context of, plus a
// reference to the authenticated practitioner.
type LaunchContext struct {
	// Patient is the id of the FHIR Patient in context, from the
	// "patient" member of the token response.
	Patient string

	// Practitioner is a relative FHIR reference to the authenticated
	// user, e.g. "Practitioner/123". Providers differ on where they put
	// it: some send a "profile" member in the token response, others
	// only set the "fhirUser" claim of the id_token.
	Practitioner string

	// Encounter is the id of the FHIR Encounter in context, when the
	// provider returned one.
	Encounter string
}

// ResolveLaunchContext derives the launch context from a token obtained
// via Client.Exchange. The "profile" member of the token response is
// preferred for the practitioner reference; the id_token's "fhirUser"
// claim is the fallback.
//
// A token carrying no launch context at all (a standalone, non-EHR
// launch) resolves to a zero LaunchContext without error; only a
// malformed id_token fails.
func ResolveLaunchContext(t Token) (*LaunchContext, error) {
	const op = "smart.ResolveLaunchContext"
	if t == nil {
		return nil, fmt.Errorf("%s: token is nil: %w", op, ErrNilParameter)
	}
	lc := &LaunchContext{
		Patient:      stringExtra(t, "patient"),
		Practitioner: stringExtra(t, "profile"),
		Encounter:    stringExtra(t, "encounter"),
	}
	if lc.Practitioner == "" && t.IdToken() != "" {
		ref, err := extractClaimFromDirectlyIssuedToken(t.IdToken(), "fhirUser")
		if err != nil {
			return nil, fmt.Errorf("%s: unable to read fhirUser claim: %w", op, err)
		}
		lc.Practitioner = ref
	}
	return lc, nil
}

func stringExtra(t Token, field string) string {
	s, _ := t.Extra(field).(string)
	return s
}

// extractClaimFromDirectlyIssuedToken reads a single string claim from a
// token's payload WITHOUT verifying its signature.
//
// Skipping verification is acceptable only because callers pass tokens
// received directly from the provider's token endpoint over TLS: the
// issuing party is authenticated by the transport. Never call this for a
// token that arrived from an untrusted channel (a browser redirect, a
// query parameter, a request header) — those must be verified against
// the provider's keys before any claim is trusted.
func extractClaimFromDirectlyIssuedToken(t IdToken, claim string) (string, error) {
	const op = "smart.extractClaimFromDirectlyIssuedToken"
	if t == "" {
		return "", fmt.Errorf("%s: id_token is empty: %w", op, ErrInvalidParameter)
	}
	var claims map[string]interface{}
	if err := t.Claims(&claims); err != nil {
		return "", fmt.Errorf("%s: unable to parse token claims: %w", op, err)
	}
	v, ok := claims[claim]
	if !ok {
		// absent claims are not an error: not every provider sets
		// fhirUser
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%s: claim %q is not a string: %w", op, claim, ErrInvalidParameter)
	}
	return s, nil
}
