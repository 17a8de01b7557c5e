package exchange

import "github.com/hashicorp/go-hclog"

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

// exchangerOptions is the set of available options for an Exchanger
type exchangerOptions struct {
	withLogger     hclog.Logger
	withProviderCA string
	withAliasFrom  string
	withAliasTo    string
}

// exchangerDefaults is a handy way to get the defaults at runtime and
// during unit tests.
func exchangerDefaults() exchangerOptions {
	return exchangerOptions{
		withLogger: hclog.NewNullLogger(),
	}
}

// getExchangerOpts gets the defaults and applies the opt overrides
// passed in.
func getExchangerOpts(opt ...Option) exchangerOptions {
	opts := exchangerDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithLogger provides an optional hclog.Logger. The default is a null
// logger that discards everything.
func WithLogger(l hclog.Logger) Option {
	return func(o interface{}) {
		if l == nil {
			return
		}
		if o, ok := o.(*exchangerOptions); ok {
			o.withLogger = l
		}
	}
}

// WithProviderCA provides an optional CA cert (PEM encoded) to use when
// making requests to the token-exchange endpoint.
func WithProviderCA(cert string) Option {
	return func(o interface{}) {
		if o, ok := o.(*exchangerOptions); ok {
			o.withProviderCA = cert
		}
	}
}

// WithIssuerAlias maps the hostname of issuers from public name to a
// deployment-internal alias before the issuer hint is sent. Needed when
// the exchanging platform reaches the issuer over a different network
// path than the user's browser did (a reverse proxy or a container
// network name). The port, scheme and path are preserved.
func WithIssuerAlias(from, to string) Option {
	return func(o interface{}) {
		if o, ok := o.(*exchangerOptions); ok {
			o.withAliasFrom = from
			o.withAliasTo = to
		}
	}
}
