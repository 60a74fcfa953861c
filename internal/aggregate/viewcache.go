package aggregate

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/transitpulse/transitpulse_core/internal/cache"
)

const homeViewTTL = 30 * time.Second

// QuantizeHomeKey buckets a query into a stable cache key: lat/lng rounded
// to 0.01 degrees (~1.1 km), radius to 250 m increments, favorites order-
// insensitive. Nearby queries collapse onto one key so repeated map pans
// reuse the same assembled view.
func QuantizeHomeKey(q HomeQuery) string {
	radius := int(math.Round(float64(q.RadiusM)/250)) * 250

	favs := append([]string(nil), q.FavoriteStopIDs...)
	sort.Strings(favs)

	data := fmt.Sprintf("%.2f,%.2f,%d,%d,%s", q.Lat, q.Lng, radius, q.Limit, strings.Join(favs, ","))
	hash := sha256.Sum256([]byte(data))
	return cache.ViewKey(fmt.Sprintf("home:%x", hash[:8]))
}

type viewEntry struct {
	snapshot  *HomeSnapshot
	expiresAt time.Time
}

// viewCache is the derived-view cache: in-memory with TTL expiry, mirrored
// best-effort to the remote cache under the same quantized key.
type viewCache struct {
	mu      sync.RWMutex
	entries map[string]viewEntry
	remote  cache.RemoteCache
	ttl     time.Duration
}

func newViewCache(remote cache.RemoteCache) *viewCache {
	return &viewCache{
		entries: make(map[string]viewEntry),
		remote:  remote,
		ttl:     homeViewTTL,
	}
}

func (c *viewCache) get(ctx context.Context, key string) *HomeSnapshot {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if ok && time.Now().Before(e.expiresAt) {
		return e.snapshot
	}

	var snap HomeSnapshot
	hit, err := c.remote.GetJSON(ctx, key, &snap)
	if err != nil {
		log.Printf("Warning: view cache read %s failed: %v", key, err)
		return nil
	}
	if !hit {
		return nil
	}
	c.mu.Lock()
	c.entries[key] = viewEntry{snapshot: &snap, expiresAt: time.Now().Add(c.ttl)}
	c.mu.Unlock()
	return &snap
}

func (c *viewCache) set(key string, snap *HomeSnapshot) {
	c.mu.Lock()
	c.entries[key] = viewEntry{snapshot: snap, expiresAt: time.Now().Add(c.ttl)}
	c.mu.Unlock()

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := c.remote.SetJSON(ctx, key, snap, c.ttl); err != nil {
			log.Printf("Warning: view cache write %s failed: %v", key, err)
		}
	}()
}
