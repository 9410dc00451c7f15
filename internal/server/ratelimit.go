package server

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/juju/ratelimit"

	"github.com/KaliFly/pennypet-invoice-llm-demo/internal/metrics"
)

// RateLimiter keeps one token bucket per client address.
type RateLimiter struct {
	clients map[string]*ratelimit.Bucket
	mu      sync.RWMutex

	rate  float64
	burst int64
}

func NewRateLimiter(rate float64, burst int64) *RateLimiter {
	if rate <= 0 {
		rate = 3
	}
	if burst <= 0 {
		burst = 1000
	}
	return &RateLimiter{
		clients: make(map[string]*ratelimit.Bucket),
		rate:    rate,
		burst:   burst,
	}
}

func (rl *RateLimiter) getBucket(clientIP string) *ratelimit.Bucket {
	rl.mu.RLock()
	bucket, exists := rl.clients[clientIP]
	rl.mu.RUnlock()

	if !exists {
		rl.mu.Lock()
		if bucket, exists = rl.clients[clientIP]; !exists {
			bucket = ratelimit.NewBucketWithRate(rl.rate, rl.burst)
			rl.clients[clientIP] = bucket
		}
		metrics.RateLimiterBucketsTotal.Set(float64(len(rl.clients)))
		rl.mu.Unlock()
	}

	return bucket
}

// StartCleanup drops clients whose buckets have refilled completely.
func (rl *RateLimiter) StartCleanup(interval time.Duration, stop <-chan struct{}) {
	if interval <= 0 {
		interval = 30 * time.Minute
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				rl.mu.Lock()
				for ip, bucket := range rl.clients {
					if bucket.Available() == bucket.Capacity() {
						delete(rl.clients, ip)
					}
				}
				metrics.RateLimiterBucketsTotal.Set(float64(len(rl.clients)))
				rl.mu.Unlock()
			}
		}
	}()
}

// tokenCost prices endpoints by how much work they trigger.
func tokenCost(r *http.Request) int64 {
	switch r.URL.Path {
	case "/healthz", "/metrics":
		return 0
	case "/v1/invoices/process":
		return 100 // OCR + LLM round trips
	case "/v1/invoices/export":
		return 50
	}
	return 10
}

func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		bucket := rl.getBucket(r.RemoteAddr)
		cost := tokenCost(r)

		w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(rl.burst, 10))

		if bucket.TakeAvailable(cost) < cost {
			w.Header().Set("X-RateLimit-Remaining", "0")
			w.Header().Set("Retry-After", "60")
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(bucket.Available(), 10))

		next.ServeHTTP(w, r)
	})
}
