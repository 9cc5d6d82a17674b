package middleware

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/technosupport/ts-shield/internal/ratelimit"
)

// RateLimit caps requests per source on the detection ingress. The key
// is the remote IP (X-Forwarded-For aware), so one misbehaving camera
// or analyzer cannot starve the pipeline for the rest.
//
// Failure policy: a Redis outage fails open. Ingest itself bounds the
// damage, and refusing detections because the limiter is down would be
// backwards.
func RateLimit(limiter *ratelimit.Limiter, cfg ratelimit.LimitConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := strings.Split(r.RemoteAddr, ":")[0]
			if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
				ip = strings.TrimSpace(strings.Split(xff, ",")[0])
			}

			decision, err := limiter.Check(r.Context(), "ip:"+ip, cfg)
			if err != nil {
				if errors.Is(err, ratelimit.ErrRedisUnavailable) {
					log.Printf("RateLimit Redis Error (Fail Open): %v", err)
				} else {
					log.Printf("RateLimit Error: %v", err)
				}
				next.ServeHTTP(w, r)
				return
			}

			writeRateLimitHeaders(w, decision)
			if !decision.Allowed {
				http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeRateLimitHeaders(w http.ResponseWriter, d *ratelimit.Decision) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(d.Reset.Unix(), 10))
	if !d.Allowed {
		w.Header().Set("Retry-After", strconv.Itoa(d.RetryAfter))
	}
}
