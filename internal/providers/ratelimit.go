package providers

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// LimiterPool manages per-backend rate limiters so fallback chains do not
// burn through a provider's quota during retries.
type LimiterPool struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewLimiterPool creates an empty limiter pool.
func NewLimiterPool() *LimiterPool {
	return &LimiterPool{limiters: make(map[string]*rate.Limiter)}
}

func (p *LimiterPool) getOrCreate(brand string, requestsPerMinute int) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()
	if limiter, ok := p.limiters[brand]; ok {
		return limiter
	}
	rps := float64(requestsPerMinute) / 60.0
	burst := requestsPerMinute / 5
	if burst < 1 {
		burst = 1
	}
	limiter := rate.NewLimiter(rate.Limit(rps), burst)
	p.limiters[brand] = limiter
	return limiter
}

// Wait blocks until the backend's limiter admits the next request or the
// context ends.
func (p *LimiterPool) Wait(ctx context.Context, brand string, requestsPerMinute int) error {
	return p.getOrCreate(brand, requestsPerMinute).Wait(ctx)
}
