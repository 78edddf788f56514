package solana

import (
	"math/rand"
	"sync"
	"time"
)

// blockhashCache shares a recent blockhash between concurrent submitters.
// Each read uses a jittered freshness window in [0.8, 1.8) * ttl so callers
// do not all refresh on the same tick.
type blockhashCache struct {
	ttl time.Duration
	now func() time.Time

	mu        sync.RWMutex
	hash      Blockhash
	fetchedAt time.Time
}

func newBlockhashCache(ttl time.Duration) *blockhashCache {
	return &blockhashCache{ttl: ttl, now: time.Now}
}

func (b *blockhashCache) get(fetch func() (Blockhash, error)) (Blockhash, error) {
	window := time.Duration(float64(b.ttl) * (0.8 + rand.Float64()))

	b.mu.RLock()
	hash, fresh := b.hash, b.now().Sub(b.fetchedAt) < window
	b.mu.RUnlock()
	if fresh && hash != (Blockhash{}) {
		return hash, nil
	}

	hash, err := fetch()
	if err != nil {
		return Blockhash{}, err
	}

	b.mu.Lock()
	b.hash, b.fetchedAt = hash, b.now()
	b.mu.Unlock()
	return hash, nil
}
