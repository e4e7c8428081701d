package goEnroll

import (
	"context"
	"strings"
	"unicode/utf8"
)

// StepOrchestrator moves an Enrollment through its steps. It advances to
// personal info as soon as the phone is recorded as verified, and routes the
// back and edit-phone actions to the VerificationSession.
type StepOrchestrator struct {
	engine       *Engine
	form         *FormState
	session      *VerificationSession
	enrollmentID string
	tenantID     string

	unsubscribe []func()
}

func newStepOrchestrator(e *Engine, form *FormState, session *VerificationSession, enrollmentID, tenantID string) *StepOrchestrator {
	o := &StepOrchestrator{
		engine:       e,
		form:         form,
		session:      session,
		enrollmentID: enrollmentID,
		tenantID:     tenantID,
	}
	o.unsubscribe = append(o.unsubscribe,
		form.Subscribe(TopicPhone, o.onPhoneChange),
		form.Subscribe(TopicStep, o.onStepChange),
	)
	return o
}

// onPhoneChange runs after FormState released its lock, so SetStep is safe.
func (o *StepOrchestrator) onPhoneChange(data FormData) {
	if data.Phone.IsVerified && data.CurrentStep == StepPhoneVerification {
		_ = o.form.SetStep(StepPersonalInfo)
	}
}

func (o *StepOrchestrator) onStepChange(data FormData) {
	o.engine.emitAudit(context.Background(), auditEventStepChanged, true, o.enrollmentID, "", o.tenantID, "", nil, map[string]string{
		"step": data.CurrentStep.String(),
	})
	if data.CurrentStep == StepComplete {
		o.engine.emitAudit(context.Background(), auditEventEnrollmentDone, true, o.enrollmentID, "", o.tenantID, "", nil, map[string]string{
			"account_type": string(data.AccountType),
		})
	}
}

// SelectAccountType records t. It is only accepted on the account-type step.
func (o *StepOrchestrator) SelectAccountType(t AccountType) error {
	if o.form.Step() != StepAccountType {
		return ErrInvalidStep
	}
	if !o.engine.validAccountType(t) {
		return ErrInvalidAccountType
	}
	o.form.SetAccountType(t)
	return nil
}

// Next moves forward from the account-type step once a type is selected, and
// from the phone step once the phone is verified. Personal info is left
// through SubmitPersonalInfo.
func (o *StepOrchestrator) Next() error {
	data := o.form.Data()
	switch data.CurrentStep {
	case StepAccountType:
		if data.AccountType == "" {
			return ErrInvalidAccountType
		}
		return o.form.SetStep(StepPhoneVerification)
	case StepPhoneVerification:
		if !data.Phone.IsVerified {
			return ErrInvalidStep
		}
		return o.form.SetStep(StepPersonalInfo)
	default:
		return ErrInvalidStep
	}
}

// SubmitPersonalInfo trims and validates info, stores it and completes the
// enrollment.
func (o *StepOrchestrator) SubmitPersonalInfo(info PersonalInfo) error {
	if o.form.Step() != StepPersonalInfo {
		return ErrInvalidStep
	}

	info = PersonalInfo{
		FirstName: strings.TrimSpace(info.FirstName),
		LastName:  strings.TrimSpace(info.LastName),
		Email:     strings.TrimSpace(info.Email),
	}
	minLen := o.engine.config.Enrollment.NameMinLength
	if utf8.RuneCountInString(info.FirstName) < minLen ||
		utf8.RuneCountInString(info.LastName) < minLen ||
		!o.engine.emailPattern.MatchString(info.Email) {
		return ErrInvalidPersonalInfo
	}

	o.form.SetPersonalInfo(info)
	return o.form.SetStep(StepComplete)
}

// Back moves one step backward. Leaving the phone step abandons an
// outstanding code but keeps a verification or a lock. Leaving personal info
// keeps the verified phone.
func (o *StepOrchestrator) Back(ctx context.Context) error {
	switch o.form.Step() {
	case StepPhoneVerification:
		o.session.Cancel(ctx)
		return o.form.SetStep(StepAccountType)
	case StepPersonalInfo:
		return o.form.SetStep(StepPhoneVerification)
	default:
		return ErrInvalidStep
	}
}

// EditPhone discards the verification, clears the recorded phone and returns
// to the phone step.
func (o *StepOrchestrator) EditPhone(ctx context.Context) error {
	switch o.form.Step() {
	case StepPhoneVerification, StepPersonalInfo:
	default:
		return ErrInvalidStep
	}

	o.session.EditPhone(ctx)
	o.form.SetPhoneData(PhoneRecord{})
	return o.form.SetStep(StepPhoneVerification)
}

// OnStepChange calls fn with the new step after every step change.
func (o *StepOrchestrator) OnStepChange(fn func(Step)) func() {
	if fn == nil {
		return func() {}
	}
	return o.form.Subscribe(TopicStep, func(data FormData) {
		fn(data.CurrentStep)
	})
}

func (o *StepOrchestrator) close() {
	for _, fn := range o.unsubscribe {
		fn()
	}
	o.unsubscribe = nil
}
