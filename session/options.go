package session

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

// WithSessionTTL provides an optional session lifetime for a Store. Each
// Put refreshes the record's expiry by this amount.
//
// Valid for: MemoryStore, RedisStore
func WithSessionTTL(d time.Duration) Option {
	return func(o interface{}) {
		if o, ok := o.(*storeOptions); ok {
			o.withSessionTTL = d
		}
	}
}

// WithCleanupInterval provides an optional sweep interval for the
// MemoryStore's background eviction of expired records.
//
// Valid for: MemoryStore
func WithCleanupInterval(d time.Duration) Option {
	return func(o interface{}) {
		if o, ok := o.(*storeOptions); ok {
			o.withCleanupInterval = d
		}
	}
}

// WithPendingTTL provides an optional lifetime for pending authorization
// attempts. A callback arriving after this window is rejected and the
// user has to start the launch over.
//
// Valid for: Manager
func WithPendingTTL(d time.Duration) Option {
	return func(o interface{}) {
		if o, ok := o.(*managerOptions); ok {
			o.withPendingTTL = d
		}
	}
}

// WithSharedEmbedded enables the single shared identity for embedded
// (iframe) visitors whose browsers refuse third-party cookies. This is a
// development accommodation for local demos only: everyone in an iframe
// shares one session.
//
// Valid for: Manager
func WithSharedEmbedded() Option {
	return func(o interface{}) {
		if o, ok := o.(*managerOptions); ok {
			o.withSharedEmbedded = true
		}
	}
}

// WithSecureCookies marks session cookies Secure and switches to the
// __Host- prefixed name, which browsers only accept over TLS. Leave it
// off for plain-HTTP local development.
//
// Valid for: CookieManager
func WithSecureCookies() Option {
	return func(o interface{}) {
		if o, ok := o.(*cookieOptions); ok {
			o.withSecure = true
		}
	}
}

// WithLogger provides an optional structured logger.
//
// Valid for: MemoryStore, RedisStore, Manager
func WithLogger(l hclog.Logger) Option {
	return func(o interface{}) {
		if l == nil {
			return
		}
		switch v := o.(type) {
		case *storeOptions:
			v.withLogger = l
		case *managerOptions:
			v.withLogger = l
		}
	}
}

type storeOptions struct {
	withSessionTTL      time.Duration
	withCleanupInterval time.Duration
	withLogger          hclog.Logger
}

func storeDefaults() storeOptions {
	return storeOptions{
		withSessionTTL:      DefaultSessionTTL,
		withCleanupInterval: DefaultCleanupInterval,
		withLogger:          hclog.NewNullLogger(),
	}
}

func getStoreOpts(opt ...Option) storeOptions {
	opts := storeDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

type cookieOptions struct {
	withSecure bool
}

func cookieDefaults() cookieOptions {
	return cookieOptions{}
}

func getCookieOpts(opt ...Option) cookieOptions {
	opts := cookieDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

type managerOptions struct {
	withPendingTTL     time.Duration
	withSharedEmbedded bool
	withLogger         hclog.Logger
}

func managerDefaults() managerOptions {
	return managerOptions{
		withPendingTTL: DefaultPendingTTL,
		withLogger:     hclog.NewNullLogger(),
	}
}

func getManagerOpts(opt ...Option) managerOptions {
	opts := managerDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}
