package goEnroll

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/goEnroll/internal/limiters"
	"github.com/redis/go-redis/v9"
)

func newIssueLimiter(redisClient redis.UniversalClient, cfg IssueThrottleConfig) *limiters.IssueLimiter {
	if !cfg.Enabled || redisClient == nil {
		return nil
	}
	return limiters.NewIssueLimiter(redisClient, limiters.IssueConfig{
		EnableIPThrottle: cfg.EnableIPThrottle,
		MaxIssues:        cfg.MaxIssuesPerWindow,
		Window:           cfg.IssueWindow,
	})
}

// enforceIssueLimit counts one issuance against phoneKey. Backend failures
// deny the issuance.
func (e *Engine) enforceIssueLimit(ctx context.Context, tenantID, phoneKey string) error {
	if e == nil || e.issueLimiter == nil {
		return nil
	}
	return mapIssueLimiterError(e.issueLimiter.Enforce(ctx, tenantID, phoneKey, clientIPFromContext(ctx)))
}

// resetIssueLimit clears the counter of a number that has just been verified.
func (e *Engine) resetIssueLimit(ctx context.Context, tenantID, phoneKey string) error {
	if e == nil || e.issueLimiter == nil {
		return nil
	}
	return mapIssueLimiterError(e.issueLimiter.Reset(ctx, tenantID, phoneKey))
}

// IssuesRemaining reports the issuance budget left for a phone number in the
// current window. It returns -1 when throttling is disabled.
func (e *Engine) IssuesRemaining(ctx context.Context, phoneNumber, countryCode string) (int, error) {
	if e == nil {
		return 0, ErrEngineNotReady
	}
	if e.issueLimiter == nil {
		return -1, nil
	}
	left, err := e.issueLimiter.Remaining(ctx, tenantIDFromContext(ctx), FormatPhoneNumber(countryCode, phoneNumber))
	if err != nil {
		return 0, mapIssueLimiterError(err)
	}
	return left, nil
}

func mapIssueLimiterError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, limiters.ErrIssueRateLimited):
		return ErrIssueRateLimited
	default:
		return fmt.Errorf("%w: %v", ErrIssueUnavailable, err)
	}
}
