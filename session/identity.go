package session

import (
	"net"
	"net/http"
	"strings"

	"github.com/jupyterhealth/smartflow/sdk/strutils"
)

// SharedEmbeddedKey is the fixed record key behind the shared embedded
// identity. Every embedded visitor maps onto this one session.
const SharedEmbeddedKey = "iframe"

// Identity names the session record a request resolves to: either the
// visitor's own cookie-bound id, or the single shared embedded id.
type Identity struct {
	// Key is the record id the Store is addressed with.
	Key string

	// Shared marks the embedded identity. Shared identities never
	// touch cookies; the key is derived from the request shape instead.
	Shared bool
}

// PerVisitor is the normal identity: one record per browser, bound by a
// signed cookie.
func PerVisitor(key string) Identity {
	return Identity{Key: key}
}

// SharedEmbedded is the development identity for iframe embedding,
// where third-party cookie rules block per-visitor cookies.
func SharedEmbedded() Identity {
	return Identity{Key: SharedEmbeddedKey, Shared: true}
}

// loopbackHosts are the only hosts the Sec-Fetch-Dest heuristic applies
// to. Embedding detection by header stays off for routable hosts.
var loopbackHosts = []string{"localhost", "127.0.0.1", "::1"}

// EmbeddedRequest reports whether the request was issued from inside an
// iframe: either the caller says so with a non-empty "iframe" query
// parameter, or the browser marked the fetch destination as an iframe
// while talking to a loopback host.
func EmbeddedRequest(r *http.Request) bool {
	if r.URL.Query().Get("iframe") != "" {
		return true
	}
	if r.Header.Get("Sec-Fetch-Dest") != "iframe" {
		return false
	}
	host := r.Host
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.Trim(host, "[]")
	return strutils.StrListContains(loopbackHosts, host)
}
