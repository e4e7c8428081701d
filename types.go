package goEnroll

import (
	"context"
	"io"
	"time"

	internalaudit "github.com/MrEthical07/goEnroll/internal/audit"
	"go.uber.org/zap"
)

// SessionStatus is the lifecycle state of a [VerificationSession].
type SessionStatus uint8

const (
	// StatusIdle means no code is outstanding.
	StatusIdle SessionStatus = iota
	// StatusAwaitingInput means a code is outstanding and may be checked.
	StatusAwaitingInput
	// StatusExpired means the code outlived its TTL and was discarded.
	StatusExpired
	// StatusLocked means attempts were exhausted; input is refused until the lock elapses.
	StatusLocked
	// StatusVerified is terminal until EditPhone.
	StatusVerified
)

func (s SessionStatus) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusAwaitingInput:
		return "awaiting_input"
	case StatusExpired:
		return "expired"
	case StatusLocked:
		return "locked"
	case StatusVerified:
		return "verified"
	default:
		return "unknown"
	}
}

// PhoneRecord is the phone portion of [FormData].
type PhoneRecord struct {
	Number      string
	CountryCode string
	IsVerified  bool
}

// PhoneRecorder is the only view of the form a [VerificationSession] gets.
// SetPhoneData is called once per successful verification, outside the
// session lock.
type PhoneRecorder interface {
	SetPhoneData(PhoneRecord)
}

// PhoneRecorderFunc adapts a function to [PhoneRecorder].
type PhoneRecorderFunc func(PhoneRecord)

func (f PhoneRecorderFunc) SetPhoneData(r PhoneRecord) {
	if f != nil {
		f(r)
	}
}

// SessionHandle describes a freshly issued code. It never carries the code.
type SessionHandle struct {
	SessionID         string
	Generation        uint64
	Phone             string
	IssuedAt          time.Time
	ExpiresAt         time.Time
	ResendAvailableAt time.Time
}

// CheckResult accompanies every Check. AttemptsRemaining is meaningful for
// ErrCodeInvalid; LockedUntil is set with ErrLocked.
type CheckResult struct {
	Status            SessionStatus
	AttemptsRemaining int
	LockedUntil       time.Time
}

// SessionSnapshot is a point-in-time copy of a session's observable state.
type SessionSnapshot struct {
	ID                string
	Status            SessionStatus
	Generation        uint64
	Phone             string
	CountryCode       string
	AttemptsUsed      int
	AttemptsRemaining int
	IssuedAt          time.Time
	ExpiresAt         time.Time
	ResendAvailableAt time.Time
	LockedUntil       time.Time
	VerifiedAt        time.Time
}

// EventKind names a [SessionEvent].
type EventKind string

const (
	EventIssued          EventKind = "issued"
	EventResent          EventKind = "resent"
	EventAttemptFailed   EventKind = "attempt_failed"
	EventExpired         EventKind = "expired"
	EventResendAvailable EventKind = "resend_available"
	EventLocked          EventKind = "locked"
	EventUnlocked        EventKind = "unlocked"
	EventVerified        EventKind = "verified"
	EventReset           EventKind = "reset"
	EventCancelled       EventKind = "cancelled"
)

// SessionEvent is delivered to subscribers after every observable transition.
type SessionEvent struct {
	Kind              EventKind
	SessionID         string
	Generation        uint64
	Status            SessionStatus
	AttemptsRemaining int
	At                time.Time
	// Deadline is the expiry, resend or lock deadline relevant to Kind, if any.
	Deadline time.Time
}

// Step is a wizard page.
type Step uint8

const (
	StepAccountType Step = iota + 1
	StepPhoneVerification
	StepPersonalInfo
	StepComplete
)

func (s Step) String() string {
	switch s {
	case StepAccountType:
		return "account_type"
	case StepPhoneVerification:
		return "phone_verification"
	case StepPersonalInfo:
		return "personal_info"
	case StepComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// Valid reports whether s is one of the four wizard steps.
func (s Step) Valid() bool {
	return s >= StepAccountType && s <= StepComplete
}

// AccountType is the kind of account being enrolled.
type AccountType string

const (
	AccountPersonal AccountType = "personal"
	AccountBusiness AccountType = "business"
)

// PersonalInfo is collected on the personal-info step.
type PersonalInfo struct {
	FirstName string
	LastName  string
	Email     string
}

// FormData is a copy of everything an [Enrollment] has collected so far.
type FormData struct {
	CurrentStep  Step
	AccountType  AccountType
	Phone        PhoneRecord
	PersonalInfo PersonalInfo
}

// DeliveryRequest is handed to [Delivery] after a code is issued. It is the
// only place the plaintext code leaves the session.
type DeliveryRequest struct {
	SessionID   string
	PhoneNumber string
	CountryCode string
	Code        string
	ExpiresAt   time.Time
}

// Delivery transmits codes. Transport is the caller's concern; errors are
// logged and counted but never fail Issue.
type Delivery interface {
	Deliver(ctx context.Context, req DeliveryRequest) error
}

// CodeGenerator returns a numeric code of exactly digits characters.
type CodeGenerator func(digits int) (string, error)

// AuditEvent is a structured audit record emitted by the engine.
type AuditEvent = internalaudit.Event

// AuditSink receives [AuditEvent] values from the engine's audit dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink is an [AuditSink] that discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based [AuditSink].
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink writes one JSON object per event.
type JSONWriterSink = internalaudit.JSONWriterSink

// ZapSink logs audit events through a zap logger.
type ZapSink = internalaudit.ZapSink

// NewChannelSink creates a [ChannelSink] with the given buffer size.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] writing to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

// NewZapSink creates a [ZapSink] on a child "audit" logger.
func NewZapSink(logger *zap.Logger) *ZapSink {
	return internalaudit.NewZapSink(logger)
}
