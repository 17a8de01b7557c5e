package smartflow_test

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jupyterhealth/smartflow/exchange"
	"github.com/jupyterhealth/smartflow/smart"
)

func Example_smart() {
	ctx := context.Background()

	// Register the public client: no secret, the authorization code is
	// bound with PKCE instead.
	c, err := smart.NewConfig(
		"your_client_id",
		"http://your_app/callback",
		smart.WithScopes("openid", "profile", "launch", "patient/*.read"),
	)
	if err != nil {
		// handle error
	}

	// Create a client. Issuers are resolved per request, which is how a
	// SMART EHR launch hands the app its issuer.
	client, err := smart.NewClient(c)
	if err != nil {
		// handle error
	}

	// Create a request for a user's authorization attempt. Its state and
	// verifier must be persisted before redirecting; the callback is
	// validated against them.
	authReq, err := smart.NewAuthRequest(10*time.Minute,
		smart.WithAuthParam("aud", "http://ehr.example/fhir"),
	)
	if err != nil {
		// handle error
	}

	authURL, err := client.AuthURL(ctx, "http://ehr.example/fhir", authReq)
	if err != nil {
		// handle error
	}
	fmt.Println("open url to kick-off authorization: ", authURL)

	// Bridge completed logins to the data platform with a token exchange.
	exchanger, err := exchange.NewExchanger("http://platform.example")
	if err != nil {
		// handle error
	}

	// Create a http.Handler for the authorization response redirect
	callbackHandler := func(w http.ResponseWriter, r *http.Request) {
		// Exchange the authorization code and state received in the
		// callback for the provider's tokens.
		tk, err := client.Exchange(ctx, "http://ehr.example/fhir", authReq, r.FormValue("state"), r.FormValue("code"))
		if err != nil {
			// handle error
		}

		// Pull the launch context the provider attached to the response.
		launchCtx, err := smart.ResolveLaunchContext(tk)
		if err != nil {
			// handle error
		}
		fmt.Fprintln(w, "patient in context: ", launchCtx.Patient)

		// Trade the fresh access token for one scoped to the platform.
		resp, err := exchanger.Exchange(ctx, tk.AccessToken(), "http://ehr.example/fhir")
		if err != nil {
			// handle error
		}
		_ = resp
	}
	http.HandleFunc("/callback", callbackHandler)
}
