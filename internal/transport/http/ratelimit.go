package http

import "time"

// rateLimiter caps actions per fixed one-minute window. It is not safe
// for concurrent use; each session owns its own instance.
type rateLimiter struct {
	limit     int
	counter   int
	windowEnd time.Time
}

func newRateLimiter(limit int) *rateLimiter {
	return &rateLimiter{limit: limit}
}

func (r *rateLimiter) allow() bool {
	if r == nil || r.limit <= 0 {
		return true
	}
	now := time.Now()
	if now.After(r.windowEnd) {
		r.windowEnd = now.Add(time.Minute)
		r.counter = 0
	}
	r.counter++
	return r.counter <= r.limit
}
