package goEnroll

import (
	"context"
	"errors"
)

const (
	auditEventCodeIssued       = "code_issued"
	auditEventCodeResent       = "code_resent"
	auditEventDeliveryFailed   = "code_delivery_failed"
	auditEventCheckFailed      = "code_check_failed"
	auditEventCodeExpired      = "code_expired"
	auditEventLocked           = "verification_locked"
	auditEventUnlocked         = "verification_unlocked"
	auditEventVerified         = "phone_verified"
	auditEventReset            = "verification_reset"
	auditEventCancelled        = "verification_cancelled"
	auditEventIssueRateLimited = "issue_rate_limited"
	auditEventReceiptIssued    = "phone_receipt_issued"
	auditEventStepChanged      = "step_changed"
	auditEventEnrollmentDone   = "enrollment_completed"
)

var errDeliveryFailed = errors.New("delivery failed")

// AuditErrorCode is the stable error label written to AuditEvent.Error.
type AuditErrorCode string

const (
	auditErrInvalidPhone   AuditErrorCode = "invalid_phone"
	auditErrCodeInvalid    AuditErrorCode = "code_invalid"
	auditErrCodeExpired    AuditErrorCode = "code_expired"
	auditErrLocked         AuditErrorCode = "locked"
	auditErrCooldown       AuditErrorCode = "cooldown_active"
	auditErrRateLimited    AuditErrorCode = "rate_limited"
	auditErrLimiterDown    AuditErrorCode = "limiter_unavailable"
	auditErrDeliveryFailed AuditErrorCode = "delivery_failed"
	auditErrReceiptFailed  AuditErrorCode = "receipt_failed"
	auditErrInternal       AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	enrollmentID string,
	sessionID string,
	tenantID string,
	maskedPhone string,
	err error,
	metadata map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}
	if tenantID == "" {
		tenantID = tenantIDFromContext(ctx)
	}

	event := AuditEvent{
		Timestamp:    e.clock.Now().UTC(),
		EventType:    eventType,
		EnrollmentID: enrollmentID,
		TenantID:     tenantID,
		SessionID:    sessionID,
		Phone:        maskedPhone,
		IP:           clientIPFromContext(ctx),
		Success:      success,
		Metadata:     metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrInvalidPhone):
		return auditErrInvalidPhone
	case errors.Is(err, ErrCodeInvalid):
		return auditErrCodeInvalid
	case errors.Is(err, ErrCodeExpired):
		return auditErrCodeExpired
	case errors.Is(err, ErrLocked):
		return auditErrLocked
	case errors.Is(err, ErrCooldownActive):
		return auditErrCooldown
	case errors.Is(err, ErrIssueRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrIssueUnavailable):
		return auditErrLimiterDown
	case errors.Is(err, errDeliveryFailed):
		return auditErrDeliveryFailed
	case errors.Is(err, ErrReceiptUnavailable), errors.Is(err, ErrReceiptDisabled):
		return auditErrReceiptFailed
	default:
		return auditErrInternal
	}
}
