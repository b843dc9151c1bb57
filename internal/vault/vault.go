// internal/vault/vault.go
//
// Vault client for `vault:` configuration references.
//
// Context
// -------
//   - Wraps the HashiCorp Vault Go SDK so config.Resolve can swap a value
//     such as `vault:secret/opensis#db_password` for the stored secret.
//   - Reads KV-v2 only.  Concurrent lookups of one key share a single
//     request, and results are cached for a TTL.
//   - Keeps the token alive with a background renewal loop tied to ctx.
//
// Public workflow
// ---------------
//  1. cli, err := vault.New(ctx, log)                      // during boot.
//  2. snap, err := config.Resolve(ctx, config.Options{Secrets: cli})
//
// Build tags: none.
package vault

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	vault "github.com/hashicorp/vault/api"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// DefaultTTL is how long Secret caches a value.
const DefaultTTL = 5 * time.Minute

// ErrBadReference reports a reference not of the form mount/path#key.
var ErrBadReference = errors.New("vault: reference must be <mount>/<path>#<key>")

//
// SECTION 1.  Public façade
//

// Client is safe for concurrent use.  Zero value is invalid.
type Client struct {
	api *vault.Client
	log *zap.SugaredLogger
	ttl time.Duration
	sfg singleflight.Group

	cacheMu sync.RWMutex
	cache   map[string]cached // mount/path#key → value + expiry.
}

type cached struct {
	val string
	exp time.Time
}

// New constructs a client from VAULT_ADDR / VAULT_TOKEN and starts token
// renewal until ctx is done.
func New(ctx context.Context, log *zap.SugaredLogger) (*Client, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	cfg := vault.DefaultConfig()
	if err := cfg.ReadEnvironment(); err != nil {
		return nil, fmt.Errorf("vault env cfg: %w", err)
	}

	apiCli, err := vault.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("vault api: %w", err)
	}
	if tok := os.Getenv("VAULT_TOKEN"); tok != "" {
		apiCli.SetToken(tok)
	}

	c := newClient(apiCli, log)
	go c.renewLoop(ctx)
	return c, nil
}

func newClient(api *vault.Client, log *zap.SugaredLogger) *Client {
	return &Client{
		api:   api,
		log:   log,
		ttl:   DefaultTTL,
		cache: make(map[string]cached),
	}
}

// Secret resolves ref (mount/path#key), satisfying config.SecretSource.
func (c *Client) Secret(ctx context.Context, ref string) (string, error) {
	path, key, err := ParseRef(ref)
	if err != nil {
		return "", err
	}
	return c.GetKV(ctx, path, key, c.ttl)
}

// GetKV fetches one key from a KV-v2 secret.  With ttl > 0 the result is
// cached for that long.
func (c *Client) GetKV(ctx context.Context, secretPath, key string, ttl time.Duration) (string, error) {
	if secretPath == "" || key == "" {
		return "", ErrBadReference
	}
	canonical := secretPath + "#" + key

	if ttl > 0 {
		if v, ok := c.lookup(canonical); ok {
			return v, nil
		}
	}

	v, err, _ := c.sfg.Do(canonical, func() (interface{}, error) {
		val, err := c.fetch(ctx, secretPath, key)
		if err != nil {
			return "", err
		}
		if ttl > 0 {
			c.store(canonical, val, ttl)
		}
		return val, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (c *Client) fetch(ctx context.Context, secretPath, key string) (string, error) {
	mount, rel := splitMount(secretPath)
	sec, err := c.api.KVv2(mount).Get(ctx, rel)
	if err != nil {
		return "", fmt.Errorf("vault get %s: %w", secretPath, err)
	}

	raw, ok := sec.Data[key]
	if !ok {
		return "", fmt.Errorf("key %q not found in secret %q", key, secretPath)
	}
	sval, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("value at %s#%s is not a string", secretPath, key)
	}
	c.log.Debugw("vault secret fetched", "path", secretPath, "key", key)
	return sval, nil
}

func (c *Client) lookup(canonical string) (string, bool) {
	c.cacheMu.RLock()
	defer c.cacheMu.RUnlock()
	cv, ok := c.cache[canonical]
	if !ok || !time.Now().Before(cv.exp) {
		return "", false
	}
	return cv.val, true
}

func (c *Client) store(canonical, val string, ttl time.Duration) {
	c.cacheMu.Lock()
	c.cache[canonical] = cached{val: val, exp: time.Now().Add(ttl)}
	c.cacheMu.Unlock()
}

//
// SECTION 2.  Background token renewal
//

func (c *Client) renewLoop(ctx context.Context) {
	for ctx.Err() == nil {
		sec, err := c.api.Auth().Token().RenewSelfWithContext(ctx, 0)
		if err != nil {
			c.log.Warnw("vault token renew-self failed", "err", err)
			backoff(ctx, 30*time.Second)
			continue
		}
		if sec == nil || sec.Auth == nil || !sec.Auth.Renewable {
			c.log.Infow("vault token is not renewable; sleeping 1h")
			backoff(ctx, time.Hour)
			continue
		}

		watcher, err := c.api.NewLifetimeWatcher(&vault.LifetimeWatcherInput{
			Secret: sec,
			Grace:  15 * time.Second,
		})
		if err != nil {
			c.log.Warnw("vault watcher init failed", "err", err)
			backoff(ctx, 30*time.Second)
			continue
		}

		c.watch(ctx, watcher)
		backoff(ctx, 15*time.Second)
	}
}

// watch runs one watcher until it stops or ctx is done.
func (c *Client) watch(ctx context.Context, w *vault.LifetimeWatcher) {
	go w.Start()
	defer w.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case err := <-w.DoneCh():
			if err != nil {
				c.log.Warnw("vault token renewal stopped", "err", err)
			}
			return
		case ev := <-w.RenewCh():
			if ev != nil && ev.Secret != nil && ev.Secret.Auth != nil {
				c.log.Debugw("vault token renewed", "ttl_s", ev.Secret.Auth.LeaseDuration)
			}
		}
	}
}

//
// SECTION 3.  Helpers
//

// ParseRef splits mount/path#key into the secret path and key.
func ParseRef(ref string) (path, key string, err error) {
	path, key, ok := strings.Cut(ref, "#")
	if !ok || path == "" || key == "" || !strings.Contains(path, "/") {
		return "", "", fmt.Errorf("%w: %q", ErrBadReference, ref)
	}
	return path, key, nil
}

func splitMount(p string) (mount, rel string) {
	mount, rel, _ = strings.Cut(p, "/")
	return mount, rel
}

func backoff(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
