// File path: internal/ratelimit/ratelimit.go
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/nicodishanthj/pentestgpt/internal/common"
	"github.com/nicodishanthj/pentestgpt/internal/common/telemetry"
	"github.com/nicodishanthj/pentestgpt/internal/config"
)

// Limit keys used by the chat routes.
const (
	KeyPentestGPT    = "pentestgpt"
	KeyPentestGPTPro = "pentestgpt-pro"
	KeyGPT4          = "gpt-4"
)

// LimitError reports a rejected request.
type LimitError struct {
	Key     string
	Limit   int
	Reset   time.Time
	Message string
}

func (e *LimitError) Error() string { return e.Message }

// HTTPStatus is always 429.
func (e *LimitError) HTTPStatus() int { return http.StatusTooManyRequests }

// Limiter enforces a sliding window of requests per user and limit key. Events
// live in the rate_limit_events table so limits survive restarts.
type Limiter struct {
	db     *sqlx.DB
	window time.Duration
	limits map[string]config.Limit
	now    func() time.Time
	mu     sync.Mutex
}

// New builds a limiter over db. A nil db disables limiting.
func New(db *sqlx.DB, cfg config.RateLimit) *Limiter {
	window := cfg.Window
	if window <= 0 {
		window = 3 * time.Hour
	}
	limits := make(map[string]config.Limit, len(cfg.Limits))
	for k, v := range cfg.Limits {
		limits[strings.ToLower(strings.TrimSpace(k))] = v
	}
	return &Limiter{db: db, window: window, limits: limits, now: time.Now}
}

// Check records one request for userID under key, or returns a *LimitError
// when the window is already full. Unknown keys are unlimited.
func (l *Limiter) Check(ctx context.Context, userID, key string, pro bool) error {
	if l == nil || l.db == nil {
		return nil
	}
	key = strings.ToLower(strings.TrimSpace(key))
	limit, ok := l.limits[key]
	if !ok {
		return nil
	}
	max := limit.Free
	if pro {
		max = limit.Pro
	}
	if max <= 0 {
		telemetry.RecordRateLimitRejection(key)
		return &LimitError{Key: key, Message: fmt.Sprintf("The %s model is not available on your current plan. Please upgrade to access it.", key)}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	since := now.Add(-l.window).UnixMilli()
	var rejected *LimitError
	tx, err := l.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin rate limit: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM rate_limit_events WHERE user_id = ? AND limit_key = ? AND at_ms <= ?`, userID, key, since); err != nil {
		tx.Rollback()
		return fmt.Errorf("expire rate limit events: %w", err)
	}
	var used int
	var oldest *int64
	row := tx.QueryRowxContext(ctx, `SELECT COUNT(*), MIN(at_ms) FROM rate_limit_events WHERE user_id = ? AND limit_key = ?`, userID, key)
	if err := row.Scan(&used, &oldest); err != nil {
		tx.Rollback()
		return fmt.Errorf("count rate limit events: %w", err)
	}
	if used >= max {
		reset := now.Add(l.window)
		if oldest != nil {
			reset = time.UnixMilli(*oldest).Add(l.window)
		}
		rejected = &LimitError{Key: key, Limit: max, Reset: reset, Message: limitMessage(key, max, l.window, reset.Sub(now), pro)}
	} else if _, err := tx.ExecContext(ctx, `INSERT INTO rate_limit_events(user_id, limit_key, at_ms) VALUES(?, ?, ?)`, userID, key, now.UnixMilli()); err != nil {
		tx.Rollback()
		return fmt.Errorf("record rate limit event: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit rate limit: %w", err)
	}
	if rejected != nil {
		telemetry.RecordRateLimitRejection(key)
		common.LoggerFrom(ctx).Info("ratelimit: rejected", "user_id", userID, "key", key, "limit", max, "reset", rejected.Reset)
		return rejected
	}
	return nil
}

// Remaining reports how many requests userID has left under key.
func (l *Limiter) Remaining(ctx context.Context, userID, key string, pro bool) (int, error) {
	if l == nil || l.db == nil {
		return math.MaxInt32, nil
	}
	key = strings.ToLower(strings.TrimSpace(key))
	limit, ok := l.limits[key]
	if !ok {
		return math.MaxInt32, nil
	}
	max := limit.Free
	if pro {
		max = limit.Pro
	}
	var used int
	since := l.now().Add(-l.window).UnixMilli()
	if err := l.db.GetContext(ctx, &used, `SELECT COUNT(*) FROM rate_limit_events WHERE user_id = ? AND limit_key = ? AND at_ms > ?`, userID, key, since); err != nil {
		return 0, fmt.Errorf("count rate limit events: %w", err)
	}
	if used >= max {
		return 0, nil
	}
	return max - used, nil
}

// IsLimitError reports whether err is a rejection.
func IsLimitError(err error) bool {
	var le *LimitError
	return errors.As(err, &le)
}

func limitMessage(key string, max int, window, wait time.Duration, pro bool) string {
	minutes := int(math.Ceil(wait.Minutes()))
	if minutes < 1 {
		minutes = 1
	}
	msg := fmt.Sprintf("You've reached the limit of %d messages per %s for %s. Please try again in %d minutes.", max, formatWindow(window), key, minutes)
	if !pro {
		msg += " Upgrade to Pro for higher limits."
	}
	return msg
}

func formatWindow(d time.Duration) string {
	if d%time.Hour == 0 {
		hours := int(d / time.Hour)
		if hours == 1 {
			return "hour"
		}
		return fmt.Sprintf("%d hours", hours)
	}
	minutes := int(math.Ceil(d.Minutes()))
	if minutes == 1 {
		return "minute"
	}
	return fmt.Sprintf("%d minutes", minutes)
}
