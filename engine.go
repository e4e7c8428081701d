package goEnroll

import (
	"context"
	"fmt"
	"regexp"
	"time"

	internalaudit "github.com/MrEthical07/goEnroll/internal/audit"
	"github.com/MrEthical07/goEnroll/internal/limiters"
	"github.com/MrEthical07/goEnroll/internal/phone"
	"github.com/MrEthical07/goEnroll/receipt"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// Engine holds the dependencies shared by every enrollment: configuration,
// clock, code delivery, the issuance limiter, audit, metrics and the receipt
// signer.
//
// Engine instances are created by [Builder.Build] and are safe for concurrent
// use. Per-user state lives in [Enrollment] and [VerificationSession].
type Engine struct {
	config       Config
	clock        clockwork.Clock
	logger       *zap.Logger
	validator    *phone.Validator
	emailPattern *regexp.Regexp
	accountTypes map[AccountType]struct{}
	delivery     Delivery
	codeGen      CodeGenerator
	issueLimiter *limiters.IssueLimiter
	audit        *internalaudit.Dispatcher
	metrics      *Metrics
	receipts     *receipt.Signer
}

// Close flushes pending audit events and stops the audit worker.
//
// Sessions created by the Engine remain usable, but their audit events are
// dropped after Close.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped reports how many audit events were discarded because the
// dispatcher buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a copy of the engine counters. It is empty when
// metrics are disabled.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// Config returns a copy of the validated configuration the Engine runs with.
func (e *Engine) Config() Config {
	if e == nil {
		return Config{}
	}
	return cloneConfig(e.config)
}

// Clock is the time source sessions use for deadlines and timers.
func (e *Engine) Clock() clockwork.Clock {
	if e == nil {
		return nil
	}
	return e.clock
}

// NewVerificationSession returns an Idle session outside any Enrollment.
// recorder may be nil.
func (e *Engine) NewVerificationSession(recorder PhoneRecorder) *VerificationSession {
	if e == nil {
		return nil
	}
	return newVerificationSession(e, recorder, "")
}

// VerifyPhoneReceipt parses a receipt minted by [Enrollment.PhoneReceipt].
// Any verification failure is reported as ErrReceiptUnavailable.
func (e *Engine) VerifyPhoneReceipt(token string) (*receipt.Claims, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	if e.receipts == nil {
		return nil, ErrReceiptDisabled
	}
	claims, err := e.receipts.Parse(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReceiptUnavailable, err)
	}
	return claims, nil
}

func (e *Engine) issueReceipt(ctx context.Context, subject receipt.Subject) (string, error) {
	if e.receipts == nil {
		return "", ErrReceiptDisabled
	}
	token, err := e.receipts.Issue(subject)
	if err != nil {
		e.logger.Warn("phone receipt signing failed",
			zap.String("enrollment_id", subject.EnrollmentID),
			zap.String("session_id", subject.SessionID),
			zap.Error(err),
		)
		wrapped := fmt.Errorf("%w: %v", ErrReceiptUnavailable, err)
		e.emitAudit(ctx, auditEventReceiptIssued, false, subject.EnrollmentID, subject.SessionID, "", phone.Mask(subject.Phone), wrapped, nil)
		return "", wrapped
	}

	e.metricInc(MetricReceiptIssued)
	e.emitAudit(ctx, auditEventReceiptIssued, true, subject.EnrollmentID, subject.SessionID, "", phone.Mask(subject.Phone), nil, nil)
	return token, nil
}

func (e *Engine) validAccountType(t AccountType) bool {
	_, ok := e.accountTypes[t]
	return ok
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) metricObserve(id MetricID, d time.Duration) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Observe(id, d)
}
