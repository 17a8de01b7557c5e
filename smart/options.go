package smart

import (
	"time"

	"github.com/hashicorp/go-hclog"
)

// Option defines a common functional options type which can be used in a
// variadic parameter pattern.
type Option func(interface{})

// ApplyOpts takes a pointer to the options struct as a set of default
// options and applies the slice of opts as overrides.
func ApplyOpts(opts interface{}, opt ...Option) {
	for _, o := range opt {
		if o == nil { // ignore any nil Options
			continue
		}
		o(opts)
	}
}

// WithExpirySkew provides an optional expiry skew for: Tk.IsExpired,
// Req.IsExpired
func WithExpirySkew(d time.Duration) Option {
	return func(o interface{}) {
		switch v := o.(type) {
		case *tokenOptions:
			v.withExpirySkew = d
		case *reqOptions:
			v.withExpirySkew = d
		}
	}
}

// WithScopes provides an optional list of scopes for: Config,
// AuthRequest
func WithScopes(scopes ...string) Option {
	return func(o interface{}) {
		switch v := o.(type) {
		case *configOptions:
			v.withScopes = append(v.withScopes, scopes...)
		case *reqOptions:
			v.withScopes = append(v.withScopes, scopes...)
		}
	}
}

// WithProviderCA provides an optional CA cert (PEM encoded) to use when
// making requests to a provider, for: Client, Discoverer
func WithProviderCA(cert string) Option {
	return func(o interface{}) {
		switch v := o.(type) {
		case *configOptions:
			v.withProviderCA = cert
		case *discovererOptions:
			v.withProviderCA = cert
		}
	}
}

// WithLogger provides an optional hclog.Logger for: Client, Discoverer.
// The default is a null logger that discards everything.
func WithLogger(l hclog.Logger) Option {
	return func(o interface{}) {
		if l == nil {
			return
		}
		switch v := o.(type) {
		case *configOptions:
			v.withLogger = l
		case *discovererOptions:
			v.withLogger = l
		}
	}
}
