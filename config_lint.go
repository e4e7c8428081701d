package goEnroll

import (
	"fmt"
	"strings"
	"time"
)

// LintSeverity ranks a [LintWarning].
type LintSeverity int

const (
	LintInfo LintSeverity = iota
	LintWarn
	LintHigh
)

func (s LintSeverity) String() string {
	switch s {
	case LintInfo:
		return "INFO"
	case LintWarn:
		return "WARN"
	case LintHigh:
		return "HIGH"
	default:
		return "UNKNOWN"
	}
}

// LintWarning is a configuration that passes Validate but is probably not
// what a production deployment wants.
type LintWarning struct {
	Code     string
	Severity LintSeverity
	Message  string
}

// LintResult is the ordered list of warnings returned by [Config.Lint].
type LintResult []LintWarning

// Codes returns the warning codes in order.
func (r LintResult) Codes() []string {
	out := make([]string, 0, len(r))
	for _, w := range r {
		out = append(out, w.Code)
	}
	return out
}

// BySeverity returns warnings at or above min.
func (r LintResult) BySeverity(min LintSeverity) LintResult {
	var out LintResult
	for _, w := range r {
		if w.Severity >= min {
			out = append(out, w)
		}
	}
	return out
}

// AsError folds every warning at or above min into one error, or returns nil.
func (r LintResult) AsError(min LintSeverity) error {
	hits := r.BySeverity(min)
	if len(hits) == 0 {
		return nil
	}
	parts := make([]string, 0, len(hits))
	for _, w := range hits {
		parts = append(parts, fmt.Sprintf("[%s] %s: %s", w.Severity, w.Code, w.Message))
	}
	return fmt.Errorf("config lint: %s", strings.Join(parts, "; "))
}

// Lint reports risky but valid settings. It never fails; call Validate for
// hard errors.
func (c *Config) Lint() LintResult {
	var r LintResult
	add := func(code string, sev LintSeverity, format string, args ...interface{}) {
		r = append(r, LintWarning{Code: code, Severity: sev, Message: fmt.Sprintf(format, args...)})
	}

	v := c.Verification
	if v.CodeLength < 6 {
		add("code_length_short", LintWarn, "CodeLength %d gives only 10^%d codes", v.CodeLength, v.CodeLength)
	}
	if v.MaxAttempts > 5 {
		add("attempts_high", LintWarn, "MaxAttempts %d raises guessing odds per issuance", v.MaxAttempts)
	}
	if v.CodeTTL > 10*time.Minute {
		add("code_ttl_long", LintWarn, "CodeTTL %s keeps codes guessable for long", v.CodeTTL)
	}
	if v.ResendCooldown <= 0 {
		add("resend_cooldown_zero", LintWarn, "ResendCooldown is zero; codes can be re-sent back to back")
	} else if v.ResendCooldown >= v.CodeTTL {
		add("resend_after_expiry", LintInfo, "ResendCooldown %s is not shorter than CodeTTL %s", v.ResendCooldown, v.CodeTTL)
	}
	if v.LockDuration < time.Minute {
		add("lock_short", LintWarn, "LockDuration %s barely slows guessing", v.LockDuration)
	}

	// Issue and EditPhone lift a lock, so without a throttle a fresh code
	// (and fresh attempts) is always one call away.
	if !c.IssueThrottle.Enabled {
		sev := LintWarn
		if c.ProductionMode {
			sev = LintHigh
		}
		add("issue_throttle_disabled", sev, "IssueThrottle is disabled; a lock can be bypassed by requesting a new code")
	}

	if c.Receipt.Enabled {
		if c.Receipt.SigningMethod == "hs256" {
			add("receipt_hs256", LintInfo, "hs256 receipts need the shared secret wherever they are verified")
		}
		if c.Receipt.TTL > time.Hour {
			add("receipt_ttl_long", LintWarn, "Receipt TTL %s outlives a typical enrollment", c.Receipt.TTL)
		}
	}

	if !c.Audit.Enabled {
		add("audit_disabled", LintInfo, "Audit is disabled")
	}

	return r
}
