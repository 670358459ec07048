// Package health exposes liveness and readiness probes.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// Pinger is satisfied by any persistence backend that can be probed.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler exposes HTTP handlers for health endpoints. Redis is optional; a
// nil client is reported as skipped rather than failing readiness.
type Handler struct {
	Store        Pinger
	Redis        *redis.Client
	StoreTimeout time.Duration
	RedisTimeout time.Duration
}

// Live reports liveness status.
func (h Handler) Live(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Ready reports readiness based on dependency probes.
func (h Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		http.Error(w, "store unavailable", http.StatusServiceUnavailable)
		return
	}

	healthy := true
	storeStatus := "ok"
	ctx, cancel := context.WithTimeout(r.Context(), h.storeTimeout())
	if err := h.Store.Ping(ctx); err != nil {
		storeStatus = err.Error()
		healthy = false
	}
	cancel()

	redisStatus := "skipped"
	if h.Redis != nil {
		redisStatus = "ok"
		ctx, cancel := context.WithTimeout(r.Context(), h.redisTimeout())
		if err := h.Redis.Ping(ctx).Err(); err != nil {
			redisStatus = err.Error()
			healthy = false
		}
		cancel()
	}

	w.Header().Set("Content-Type", "application/json")
	if !healthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	_ = json.NewEncoder(w).Encode(map[string]string{
		"store": storeStatus,
		"redis": redisStatus,
	})
}

func (h Handler) storeTimeout() time.Duration {
	if h.StoreTimeout <= 0 {
		return 500 * time.Millisecond
	}
	return h.StoreTimeout
}

func (h Handler) redisTimeout() time.Duration {
	if h.RedisTimeout <= 0 {
		return 300 * time.Millisecond
	}
	return h.RedisTimeout
}
