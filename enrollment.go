package goEnroll

import (
	"context"
	"strings"
	"sync"

	"github.com/MrEthical07/goEnroll/receipt"
	"github.com/google/uuid"
)

// Enrollment is one user's pass through the wizard. It wires a [FormState],
// a [VerificationSession] and a [StepOrchestrator] together; code inputs are
// created with NewCodeInput.
type Enrollment struct {
	id       string
	tenantID string
	engine   *Engine

	form         *FormState
	session      *VerificationSession
	orchestrator *StepOrchestrator

	mu     sync.Mutex
	unsubs []func()
	closed bool
}

// NewEnrollment starts an enrollment on the account-type step. The tenant is
// taken from ctx (see WithTenantID).
func (e *Engine) NewEnrollment(ctx context.Context) (*Enrollment, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	id := uuid.NewString()
	form := NewFormState()
	session := newVerificationSession(e, form, id)
	tenantID := tenantIDFromContext(ctx)

	return &Enrollment{
		id:           id,
		tenantID:     tenantID,
		engine:       e,
		form:         form,
		session:      session,
		orchestrator: newStepOrchestrator(e, form, session, id, tenantID),
	}, nil
}

func (en *Enrollment) ID() string { return en.id }

func (en *Enrollment) Form() *FormState { return en.form }

func (en *Enrollment) Session() *VerificationSession { return en.session }

func (en *Enrollment) Orchestrator() *StepOrchestrator { return en.orchestrator }

// Data is shorthand for Form().Data().
func (en *Enrollment) Data() FormData { return en.form.Data() }

// RequestCode issues a code for the given number and records the number as
// unverified. An empty countryCode means Phone.DefaultCountryCode. It is only
// accepted on the phone step.
func (en *Enrollment) RequestCode(ctx context.Context, phoneNumber, countryCode string) (SessionHandle, error) {
	if en.form.Step() != StepPhoneVerification {
		return SessionHandle{}, ErrInvalidStep
	}
	phoneNumber = strings.TrimSpace(phoneNumber)
	countryCode = strings.TrimSpace(countryCode)
	if countryCode == "" {
		countryCode = en.engine.config.Phone.DefaultCountryCode
	}

	ctx = WithTenantID(ctx, en.tenantID)
	handle, err := en.session.Issue(ctx, phoneNumber, countryCode)
	if err != nil {
		return SessionHandle{}, err
	}
	en.form.SetPhoneData(PhoneRecord{Number: phoneNumber, CountryCode: countryCode})
	return handle, nil
}

// ResendCode reissues a code to the number of the outstanding session.
func (en *Enrollment) ResendCode(ctx context.Context) (SessionHandle, error) {
	return en.session.Resend(WithTenantID(ctx, en.tenantID))
}

// NewCodeInput returns an assembler sized to the configured code length that
// submits to this enrollment's session. It is disabled while the session is
// Locked or Verified and cleared whenever a new code is armed or the session
// is reset.
func (en *Enrollment) NewCodeInput() *CodeInputAssembler {
	a := NewCodeInputAssembler(en.engine.config.Verification.CodeLength, en.session)

	switch en.session.Status() {
	case StatusLocked, StatusVerified:
		a.Disable()
	}

	unsub := en.session.Subscribe(func(ev SessionEvent) {
		switch ev.Kind {
		case EventLocked, EventVerified:
			a.Disable()
		case EventIssued, EventResent, EventReset, EventUnlocked, EventCancelled:
			a.Clear()
			a.Enable()
		}
	})

	en.mu.Lock()
	if en.closed {
		en.mu.Unlock()
		unsub()
		return a
	}
	en.unsubs = append(en.unsubs, unsub)
	en.mu.Unlock()
	return a
}

// PhoneReceipt signs proof that this enrollment verified its phone. It fails
// with ErrReceiptUnavailable until the session is Verified.
func (en *Enrollment) PhoneReceipt(ctx context.Context) (string, error) {
	snap := en.session.Snapshot()
	if snap.Status != StatusVerified {
		return "", ErrReceiptUnavailable
	}
	return en.engine.issueReceipt(WithTenantID(ctx, en.tenantID), receipt.Subject{
		Phone:        snap.Phone,
		CountryCode:  snap.CountryCode,
		SessionID:    snap.ID,
		EnrollmentID: en.id,
		VerifiedAt:   snap.VerifiedAt,
	})
}

// Close stops the session timers and detaches all subscriptions made by the
// enrollment. The Enrollment should not be used afterwards.
func (en *Enrollment) Close() {
	en.mu.Lock()
	if en.closed {
		en.mu.Unlock()
		return
	}
	en.closed = true
	unsubs := en.unsubs
	en.unsubs = nil
	en.mu.Unlock()

	for _, fn := range unsubs {
		fn()
	}
	en.orchestrator.close()
	en.session.stop()
}
