package toml

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/stellar/go/keypair"
	"go.uber.org/zap"

	"github.com/marwen-abid/stellar-watch-sdk-go/core/net"
	"github.com/marwen-abid/stellar-watch-sdk-go/errors"
)

const (
	defaultCacheTTL = 5 * time.Minute
	wellKnownPath   = "/.well-known/stellar.toml"
	maxTomlSize     = 100 * 1024
)

type cacheEntry struct {
	info      *DomainInfo
	fetchedAt time.Time
}

// Resolver fetches and caches stellar.toml files.
type Resolver struct {
	client   *net.Client
	logger   *zap.Logger
	cache    map[string]*cacheEntry
	cacheTTL time.Duration
	mu       sync.RWMutex
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithCacheTTL sets how long a resolved file is reused (default: 5m).
func WithCacheTTL(d time.Duration) ResolverOption {
	return func(r *Resolver) {
		r.cacheTTL = d
	}
}

// WithLogger sets the logger used to report ignored entries.
func WithLogger(logger *zap.Logger) ResolverOption {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func NewResolver(client *net.Client, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		client:   client,
		logger:   zap.NewNop(),
		cache:    make(map[string]*cacheEntry),
		cacheTTL: defaultCacheTTL,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the parsed stellar.toml of domain. A bare domain is
// fetched over https; a domain given with an explicit scheme keeps it.
func (r *Resolver) Resolve(ctx context.Context, domain string) (*DomainInfo, error) {
	r.mu.RLock()
	entry, exists := r.cache[domain]
	r.mu.RUnlock()

	if exists && time.Since(entry.fetchedAt) < r.cacheTTL {
		return entry.info, nil
	}

	url := domain
	if !strings.HasPrefix(url, "https://") && !strings.HasPrefix(url, "http://") {
		url = "https://" + url
	}
	url = strings.TrimSuffix(url, "/") + wellKnownPath

	resp, err := r.client.Get(ctx, url)
	if err != nil {
		return nil, errors.NewCoreError(errors.TOML_FETCH_FAILED, fmt.Sprintf("failed to fetch stellar.toml from %s", domain), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.NewCoreError(errors.TOML_FETCH_FAILED, fmt.Sprintf("stellar.toml fetch returned status %d", resp.StatusCode), nil).
			With("domain", domain)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxTomlSize))
	if err != nil {
		return nil, errors.NewCoreError(errors.TOML_FETCH_FAILED, "failed to read stellar.toml response", err)
	}

	info, err := r.parse(domain, string(body))
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.cache[domain] = &cacheEntry{
		info:      info,
		fetchedAt: time.Now(),
	}
	r.mu.Unlock()

	return info, nil
}

func (r *Resolver) parse(domain, content string) (*DomainInfo, error) {
	info := &DomainInfo{}
	if _, err := toml.Decode(content, info); err != nil {
		return nil, errors.NewCoreError(errors.TOML_INVALID, "failed to parse stellar.toml", err).With("domain", domain)
	}

	// A malformed issuer drops that currency, not the whole file.
	currencies := info.Currencies[:0]
	for _, c := range info.Currencies {
		if c.Issuer != "" {
			if _, err := keypair.ParseAddress(c.Issuer); err != nil {
				r.logger.Warn("ignoring currency with invalid issuer",
					zap.String("domain", domain),
					zap.String("code", c.Code),
					zap.String("issuer", c.Issuer),
				)
				continue
			}
		}
		currencies = append(currencies, c)
	}
	info.Currencies = currencies

	return info, nil
}
