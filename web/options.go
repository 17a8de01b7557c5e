package web

import (
	"net/http"

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

// WithLogger provides an optional structured logger.
func WithLogger(l hclog.Logger) Option {
	return func(o interface{}) {
		if l == nil {
			return
		}
		if o, ok := o.(*handlersOptions); ok {
			o.withLogger = l
		}
	}
}

// WithHTTPClient provides an optional client for the live token
// verification probe, replacing the default pooled client. Needed when
// the platform serves a certificate the system pool does not trust.
func WithHTTPClient(c *http.Client) Option {
	return func(o interface{}) {
		if c == nil {
			return
		}
		if o, ok := o.(*handlersOptions); ok {
			o.withHTTPClient = c
		}
	}
}

type handlersOptions struct {
	withLogger     hclog.Logger
	withHTTPClient *http.Client
}

func handlersDefaults() handlersOptions {
	return handlersOptions{
		withLogger: hclog.NewNullLogger(),
	}
}

func getHandlersOpts(opt ...Option) handlersOptions {
	opts := handlersDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}
