package handler

import (
	"database/sql"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/minidrive/minidrive/pkg/response"
)

// KeyFunc extracts a rate-limiting key from a request.
type KeyFunc func(c *fiber.Ctx) string

// RateLimiter enforces a fixed-window request limit per key. When a database
// is attached, counters live in the shared rate_limit_counters table so they
// survive restarts and are shared between replicas; the in-memory map is the
// fallback when the database is unreachable.
type RateLimiter struct {
	requests map[string]*windowCounter
	mu       sync.Mutex
	limit    int
	window   time.Duration
	keyFunc  KeyFunc
	db       *sql.DB
	scope    string
	stopCh   chan struct{}
	stopOnce sync.Once
}

type windowCounter struct {
	count     int
	windowEnd time.Time
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return newRateLimiter(limit, window, defaultKeyFunc, nil, "")
}

// NewPersistentRateLimiter creates a rate limiter backed by the shared SQL
// database under the given scope.
func NewPersistentRateLimiter(db *sql.DB, scope string, limit int, window time.Duration) *RateLimiter {
	return newRateLimiter(limit, window, defaultKeyFunc, db, scope)
}

// NewPersistentRateLimiterWithKey is NewPersistentRateLimiter with a custom
// key extraction function.
func NewPersistentRateLimiterWithKey(db *sql.DB, scope string, limit int, window time.Duration, keyFunc KeyFunc) *RateLimiter {
	return newRateLimiter(limit, window, keyFunc, db, scope)
}

func newRateLimiter(limit int, window time.Duration, keyFunc KeyFunc, db *sql.DB, scope string) *RateLimiter {
	if keyFunc == nil {
		keyFunc = defaultKeyFunc
	}
	scope = strings.TrimSpace(scope)
	if scope == "" {
		scope = "default"
	}

	rl := &RateLimiter{
		requests: make(map[string]*windowCounter),
		limit:    limit,
		window:   window,
		keyFunc:  keyFunc,
		db:       db,
		scope:    scope,
		stopCh:   make(chan struct{}),
	}
	go rl.cleanup()
	return rl
}

// IPAndUserKey combines the client IP with the authenticated user ID, so one
// user cannot dodge limits by rotating IPs and one shared IP does not starve
// distinct users.
func IPAndUserKey(c *fiber.Ctx) string {
	ip := c.IP()
	if userID, ok := c.Locals("user_id").(string); ok && userID != "" {
		return ip + ":" + userID
	}
	return ip
}

func defaultKeyFunc(c *fiber.Ctx) string {
	return c.IP()
}

// Middleware returns the rate limiting middleware.
func (rl *RateLimiter) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := rl.keyFunc(c)
		now := time.Now()

		if rl.db != nil {
			allowed, err := rl.allowPersistent(key, now)
			if err == nil {
				if !allowed {
					return response.Error(c, fiber.StatusTooManyRequests, "too many requests, please try again later")
				}
				return c.Next()
			}
			// Persistent store failed; fall through to the in-memory limiter.
		}

		if !rl.allowInMemory(key, now) {
			return response.Error(c, fiber.StatusTooManyRequests, "too many requests, please try again later")
		}
		return c.Next()
	}
}

func (rl *RateLimiter) allowPersistent(key string, now time.Time) (bool, error) {
	scopedKey := rl.scope + ":" + key
	windowEnd := now.Add(rl.window)

	_, err := rl.db.Exec(`
		INSERT INTO rate_limit_counters (scope_key, count, window_end, updated_at)
		VALUES (?, 1, ?, ?)
		ON CONFLICT(scope_key) DO UPDATE SET
			count = CASE
				WHEN rate_limit_counters.window_end <= excluded.updated_at THEN 1
				ELSE rate_limit_counters.count + 1
			END,
			window_end = CASE
				WHEN rate_limit_counters.window_end <= excluded.updated_at THEN excluded.window_end
				ELSE rate_limit_counters.window_end
			END,
			updated_at = excluded.updated_at
	`, scopedKey, windowEnd, now)
	if err != nil {
		return false, err
	}

	var count int
	if err := rl.db.QueryRow(`SELECT count FROM rate_limit_counters WHERE scope_key = ?`, scopedKey).Scan(&count); err != nil {
		return false, err
	}
	return count <= rl.limit, nil
}

func (rl *RateLimiter) allowInMemory(key string, now time.Time) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	wc, exists := rl.requests[key]
	if !exists || now.After(wc.windowEnd) {
		rl.requests[key] = &windowCounter{count: 1, windowEnd: now.Add(rl.window)}
		return true
	}
	if wc.count >= rl.limit {
		return false
	}
	wc.count++
	return true
}

func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			now := time.Now()

			rl.mu.Lock()
			for key, wc := range rl.requests {
				if now.After(wc.windowEnd) {
					delete(rl.requests, key)
				}
			}
			rl.mu.Unlock()

			if rl.db != nil {
				_, _ = rl.db.Exec(`DELETE FROM rate_limit_counters WHERE window_end <= ?`, now)
			}
		case <-rl.stopCh:
			return
		}
	}
}

// Stop terminates the cleanup goroutine.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() {
		close(rl.stopCh)
	})
}
