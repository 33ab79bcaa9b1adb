package client

import (
	"crypto/sha256"
	"net/http"
	"sync"

	"github.com/gregjones/httpcache"
	"github.com/gregjones/httpcache/diskcache"
	"github.com/klauspost/compress/gzhttp"
	"github.com/mr-tron/base58"
	"github.com/wolfeidau/smartcampus/internal/logger"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// NewHTTPClient builds the transport chain described by config:
// gzip, optional response cache, request logging and optional tracing.
func NewHTTPClient(config Config) *http.Client {
	var transport http.RoundTripper = gzhttp.Transport(http.DefaultTransport)

	if config.Cache {
		transport = newCachingTransport(config.CacheDir, transport)
	}

	transport = logger.NewTransport(transport)

	if config.Tracing {
		transport = otelhttp.NewTransport(transport)
	}

	return &http.Client{
		Transport: transport,
		Timeout:   config.Timeout,
	}
}

// cachingTransport keeps one cache partition per Authorization header, so a response
// cached for one account is never served to another.
type cachingTransport struct {
	cache  httpcache.Cache
	parent http.RoundTripper

	mu         sync.Mutex
	partitions map[string]*httpcache.Transport
}

// newCachingTransport creates a caching transport on top of parent.
// Used for cacheable reads such as the events listing.
func newCachingTransport(cacheDir string, parent http.RoundTripper) http.RoundTripper {
	var cache httpcache.Cache
	if cacheDir == "" {
		// Use in-memory cache if no cache directory specified
		cache = httpcache.NewMemoryCache()
	} else {
		// Use disk-based cache for persistence across restarts
		cache = diskcache.New(cacheDir)
	}

	return &cachingTransport{
		cache:      cache,
		parent:     parent,
		partitions: make(map[string]*httpcache.Transport),
	}
}

func (c *cachingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return c.partition(req.Header.Get("Authorization")).RoundTrip(req)
}

func (c *cachingTransport) partition(authorization string) *httpcache.Transport {
	key := "anonymous"
	if authorization != "" {
		sum := sha256.Sum256([]byte(authorization))
		key = base58.Encode(sum[:])
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if t, ok := c.partitions[key]; ok {
		return t
	}

	t := httpcache.NewTransport(prefixedCache{cache: c.cache, prefix: key + ":"})
	t.Transport = c.parent
	t.MarkCachedResponses = true
	c.partitions[key] = t

	return t
}

type prefixedCache struct {
	cache  httpcache.Cache
	prefix string
}

func (p prefixedCache) Get(key string) ([]byte, bool) { return p.cache.Get(p.prefix + key) }

func (p prefixedCache) Set(key string, value []byte) { p.cache.Set(p.prefix+key, value) }

func (p prefixedCache) Delete(key string) { p.cache.Delete(p.prefix + key) }
