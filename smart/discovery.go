package smart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/singleflight"

	sdkhttp "github.com/jupyterhealth/smartflow/sdk/http"
)

// WellKnownPath is the standard path where a provider publishes its
// OpenID configuration.
const WellKnownPath = "/.well-known/openid-configuration"

// maxDiscoveryBodyBytes caps how much of a discovery response is read.
const maxDiscoveryBodyBytes = 1 << 20

// ProviderMetadata is the subset of a provider's OpenID configuration
// this module needs, plus the raw document for callers that want the
// rest. Metadata is cached per issuer and never mutated after creation;
// callers must treat Raw as read-only.
type ProviderMetadata struct {
	Issuer                string
	AuthorizationEndpoint string
	TokenEndpoint         string

	// Raw is the full discovery document as decoded JSON.
	Raw map[string]interface{}
}

// Discoverer fetches and caches provider metadata per issuer base URI.
//
// Lookup follows what SMART-on-FHIR deployments serve in the wild: the
// path-suffix form {issuer}/.well-known/openid-configuration is tried
// first; on any failure the root form
// {scheme://host}/.well-known/openid-configuration is tried next; when
// both fail, the first attempt's error is the primary cause.
//
// Cache entries never expire within a process lifetime. Discovery
// documents are near-static and a process restart refreshes them;
// callers needing topology changes must restart.
type Discoverer struct {
	client *http.Client
	logger hclog.Logger

	mu    sync.RWMutex
	cache map[string]*ProviderMetadata

	// group de-duplicates concurrent fetches for the same issuer into a
	// single outstanding request
	group singleflight.Group
}

// NewDiscoverer creates a Discoverer.
// Supported options: WithLogger, WithProviderCA
func NewDiscoverer(opt ...Option) (*Discoverer, error) {
	const op = "smart.NewDiscoverer"
	opts := getDiscovererOpts(opt...)
	client, err := sdkhttp.NewClient(opts.withProviderCA)
	if err != nil {
		if errors.Is(err, sdkhttp.ErrInvalidCertificatePem) {
			return nil, fmt.Errorf("%s: could not parse CA PEM value: %w", op, ErrInvalidCACert)
		}
		return nil, fmt.Errorf("%s: could not get an http client: %w", op, err)
	}
	return &Discoverer{
		client: client,
		logger: opts.withLogger,
		cache:  map[string]*ProviderMetadata{},
	}, nil
}

// Discover resolves the metadata for the given issuer base URI, fetching
// it on first use and answering from the cache afterwards. Concurrent
// resolutions for the same issuer share a single outstanding fetch and
// all receive the identical document.
func (d *Discoverer) Discover(ctx context.Context, issuerBase string) (*ProviderMetadata, error) {
	const op = "Discoverer.Discover"
	if issuerBase == "" {
		return nil, fmt.Errorf("%s: issuer is empty: %w", op, ErrInvalidParameter)
	}
	key := strings.TrimSuffix(issuerBase, "/")
	if md := d.cached(key); md != nil {
		d.logger.Debug("discovery cache hit", "issuer", key)
		return md, nil
	}
	res, err, _ := d.group.Do(key, func() (interface{}, error) {
		// a flight that finished while we waited may already have
		// populated the cache
		if md := d.cached(key); md != nil {
			return md, nil
		}
		md, err := d.fetch(ctx, key)
		if err != nil {
			return nil, err
		}
		d.mu.Lock()
		d.cache[key] = md
		d.mu.Unlock()
		return md, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return res.(*ProviderMetadata), nil
}

func (d *Discoverer) cached(key string) *ProviderMetadata {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cache[key]
}

func (d *Discoverer) fetch(ctx context.Context, issuer string) (*ProviderMetadata, error) {
	const op = "Discoverer.fetch"
	md, firstErr := d.fetchURL(ctx, issuer, issuer+WellKnownPath)
	if firstErr == nil {
		return md, nil
	}

	rootForm, err := rootWellKnownURL(issuer)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrDiscovery, firstErr)
	}
	d.logger.Debug("discovery falling back to root form", "issuer", issuer, "url", rootForm, "cause", firstErr)
	md, secondErr := d.fetchURL(ctx, issuer, rootForm)
	if secondErr == nil {
		return md, nil
	}

	// surface the first attempt's error as the primary cause while
	// keeping the fallback's inspectable
	return nil, fmt.Errorf("%s: %w: %w", op, ErrDiscovery, multierror.Append(firstErr, secondErr))
}

func (d *Discoverer) fetchURL(ctx context.Context, issuer, rawURL string) (*ProviderMetadata, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("unable to create discovery request for %q: %w", rawURL, err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("discovery request for %q failed: %w", rawURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("discovery request for %q returned status %d", rawURL, resp.StatusCode)
	}
	var raw map[string]interface{}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxDiscoveryBodyBytes)).Decode(&raw); err != nil {
		return nil, fmt.Errorf("unable to decode discovery document from %q: %w", rawURL, err)
	}
	authEndpoint, _ := raw["authorization_endpoint"].(string)
	tokenEndpoint, _ := raw["token_endpoint"].(string)
	if authEndpoint == "" || tokenEndpoint == "" {
		return nil, fmt.Errorf("discovery document from %q is missing an authorization or token endpoint", rawURL)
	}
	docIssuer, _ := raw["issuer"].(string)
	if docIssuer == "" {
		docIssuer = issuer
	}
	return &ProviderMetadata{
		Issuer:                docIssuer,
		AuthorizationEndpoint: authEndpoint,
		TokenEndpoint:         tokenEndpoint,
		Raw:                   raw,
	}, nil
}

// rootWellKnownURL replaces the issuer's path with the well-known path,
// keeping only scheme and host.
func rootWellKnownURL(issuer string) (string, error) {
	u, err := url.Parse(issuer)
	if err != nil {
		return "", fmt.Errorf("issuer %q is invalid: %w", issuer, ErrInvalidIssuer)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("issuer %q is missing a scheme or host: %w", issuer, ErrInvalidIssuer)
	}
	u.Path = WellKnownPath
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}

// discovererOptions is the set of available options for a Discoverer
type discovererOptions struct {
	withLogger     hclog.Logger
	withProviderCA string
}

// discovererDefaults is a handy way to get the defaults at runtime and
// during unit tests.
func discovererDefaults() discovererOptions {
	return discovererOptions{
		withLogger: hclog.NewNullLogger(),
	}
}

// getDiscovererOpts gets the defaults and applies the opt overrides
// passed in.
func getDiscovererOpts(opt ...Option) discovererOptions {
	opts := discovererDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}
