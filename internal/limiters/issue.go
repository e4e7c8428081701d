package limiters

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrIssueRateLimited = errors.New("issue rate limited")
	ErrIssueUnavailable = errors.New("issue limiter unavailable")
)

// IssueConfig bounds how many codes may be issued to one phone number (and
// optionally one client IP) inside a fixed window.
type IssueConfig struct {
	EnableIPThrottle bool
	MaxIssues        int
	Window           time.Duration
}

// IssueLimiter is a fixed-window counter keyed by tenant and formatted phone
// number. It complements the per-session resend cooldown, which only guards a
// single enrollment.
type IssueLimiter struct {
	redis  redis.UniversalClient
	config IssueConfig
}

func NewIssueLimiter(redisClient redis.UniversalClient, cfg IssueConfig) *IssueLimiter {
	return &IssueLimiter{
		redis:  redisClient,
		config: cfg,
	}
}

// Enforce counts one issuance. The call that pushes a counter past MaxIssues
// is the first one rejected.
func (l *IssueLimiter) Enforce(ctx context.Context, tenantID, phoneKey, ip string) error {
	if l == nil || l.redis == nil {
		return nil
	}
	if err := l.enforceKey(ctx, issuePhoneKey(tenantID, phoneKey)); err != nil {
		return err
	}
	if l.config.EnableIPThrottle && ip != "" {
		if err := l.enforceKey(ctx, issueIPKey(tenantID, ip)); err != nil {
			return err
		}
	}
	return nil
}

// Remaining reports how many issuances are left for phoneKey in the current
// window. A missing counter means the full budget.
func (l *IssueLimiter) Remaining(ctx context.Context, tenantID, phoneKey string) (int, error) {
	if l == nil || l.redis == nil {
		return 0, nil
	}
	count, err := l.redis.Get(ctx, issuePhoneKey(tenantID, phoneKey)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return l.config.MaxIssues, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrIssueUnavailable, err)
	}
	left := l.config.MaxIssues - int(count)
	if left < 0 {
		left = 0
	}
	return left, nil
}

// Reset clears the phone counter, e.g. after the number is verified.
func (l *IssueLimiter) Reset(ctx context.Context, tenantID, phoneKey string) error {
	if l == nil || l.redis == nil {
		return nil
	}
	if err := l.redis.Del(ctx, issuePhoneKey(tenantID, phoneKey)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrIssueUnavailable, err)
	}
	return nil
}

func (l *IssueLimiter) enforceKey(ctx context.Context, key string) error {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIssueUnavailable, err)
	}

	if count == 1 {
		if err := l.redis.Expire(ctx, key, l.config.Window).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrIssueUnavailable, err)
		}
	}

	if count > int64(l.config.MaxIssues) {
		return ErrIssueRateLimited
	}
	return nil
}

func issuePhoneKey(tenantID, phoneKey string) string {
	return "eis:" + normalizeTenantID(tenantID) + ":" + phoneKey
}

func issueIPKey(tenantID, ip string) string {
	return "eisip:" + normalizeTenantID(tenantID) + ":" + ip
}

func normalizeTenantID(tenantID string) string {
	if tenantID == "" {
		return "0"
	}
	return tenantID
}
