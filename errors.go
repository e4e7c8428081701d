package goEnroll

import "errors"

var (
	// ErrInvalidPhone is returned by Issue when the number or country code is malformed.
	// No session state changes.
	ErrInvalidPhone = errors.New("invalid phone number")
	// ErrCodeInvalid reports a mismatched code. CheckResult.AttemptsRemaining says how
	// many tries are left.
	ErrCodeInvalid = errors.New("invalid verification code")
	// ErrCodeExpired reports that the code outlived its TTL. A resend is required.
	ErrCodeExpired = errors.New("verification code expired")
	// ErrLocked reports that attempts were exhausted and input is refused until the
	// lock elapses.
	ErrLocked = errors.New("verification locked")
	// ErrCooldownActive is returned by Resend before the resend cooldown has elapsed.
	ErrCooldownActive = errors.New("resend cooldown active")

	// ErrNoActiveCode is returned when no code has been issued for the session.
	ErrNoActiveCode = errors.New("no active verification code")
	// ErrAlreadyVerified is returned by Issue, Resend and Check once the phone is verified.
	ErrAlreadyVerified = errors.New("phone already verified")
	// ErrIssueRateLimited is returned when the per-phone issuance window is exhausted.
	ErrIssueRateLimited = errors.New("code issuance rate limited")
	// ErrIssueUnavailable wraps failures of the issuance limiter backend.
	ErrIssueUnavailable = errors.New("code issuance backend unavailable")
	// ErrEngineNotReady is returned when methods are called on a nil or unbuilt Engine.
	ErrEngineNotReady = errors.New("engine not initialized")

	ErrInvalidAccountType  = errors.New("invalid account type")
	ErrInvalidPersonalInfo = errors.New("invalid personal info")
	ErrInvalidStep         = errors.New("action not allowed on current step")

	// ErrReceiptDisabled is returned when phone receipts are not configured.
	ErrReceiptDisabled = errors.New("phone receipt disabled")
	// ErrReceiptUnavailable is returned when no receipt can be minted, e.g. the phone
	// is not verified yet, or when a presented receipt fails verification.
	ErrReceiptUnavailable = errors.New("phone receipt unavailable")
)
