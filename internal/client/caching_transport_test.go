package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cacheableServer(t *testing.T, hits *atomic.Int32) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Cache-Control", "max-age=60")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"count": 1}`))
	}))
	t.Cleanup(server.Close)

	return server
}

func TestNewHTTPClientCache(t *testing.T) {
	tests := []struct {
		name     string
		cache    bool
		diskDir  bool
		wantHits int32
	}{
		{name: "no cache", cache: false, wantHits: 2},
		{name: "memory cache", cache: true, wantHits: 1},
		{name: "disk cache", cache: true, diskDir: true, wantHits: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var hits atomic.Int32
			server := cacheableServer(t, &hits)

			config := Config{BaseURL: server.URL, Cache: tt.cache}
			if tt.diskDir {
				config.CacheDir = t.TempDir()
			}
			c := New(config, &fakeTokens{})

			for range 2 {
				var out struct {
					Count int `json:"count"`
				}
				require.NoError(t, c.Get(context.Background(), "/events/", &out))
				assert.Equal(t, 1, out.Count)
			}

			assert.Equal(t, tt.wantHits, hits.Load())
		})
	}
}

func TestNewHTTPClientTimeout(t *testing.T) {
	hc := NewHTTPClient(Config{Timeout: 5 * time.Second, Tracing: true})
	assert.Equal(t, 5*time.Second, hc.Timeout)
	assert.NotNil(t, hc.Transport)
}

func TestCachePartitionsByAccount(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Cache-Control", "max-age=60")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"authorization": r.Header.Get("Authorization")})
	}))
	t.Cleanup(server.Close)

	cacheDir := t.TempDir()
	profile := func(c *Client) string {
		var out struct {
			Authorization string `json:"authorization"`
		}
		require.NoError(t, c.Get(context.Background(), "/auth/profile/", &out))
		return out.Authorization
	}

	tokens := &fakeTokens{token: "first"}
	c := New(Config{BaseURL: server.URL, Cache: true, CacheDir: cacheDir}, tokens)

	assert.Equal(t, "Bearer first", profile(c))
	assert.Equal(t, "Bearer first", profile(c))
	assert.Equal(t, int32(1), hits.Load())

	tokens.mu.Lock()
	tokens.token = "second"
	tokens.mu.Unlock()

	assert.Equal(t, "Bearer second", profile(c))
	assert.Equal(t, int32(2), hits.Load())

	// another process sharing the cache directory
	other := New(Config{BaseURL: server.URL, Cache: true, CacheDir: cacheDir}, &fakeTokens{token: "third"})
	assert.Equal(t, "Bearer third", profile(other))
	assert.Equal(t, int32(3), hits.Load())

	again := New(Config{BaseURL: server.URL, Cache: true, CacheDir: cacheDir}, &fakeTokens{token: "first"})
	assert.Equal(t, "Bearer first", profile(again))
	assert.Equal(t, int32(3), hits.Load())
}
