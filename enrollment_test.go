package goEnroll

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"strings"
	"testing"
	"time"
)

func newTestEnrollment(t *testing.T, env testEnv) *Enrollment {
	t.Helper()
	en, err := env.engine.NewEnrollment(WithTenantID(context.Background(), "tenant-a"))
	if err != nil {
		t.Fatalf("NewEnrollment failed: %v", err)
	}
	t.Cleanup(en.Close)
	return en
}

func receiptConfig(t *testing.T) Config {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}
	cfg := DefaultConfig()
	cfg.Receipt.Enabled = true
	cfg.Receipt.PrivateKey = priv
	cfg.Receipt.PublicKey = pub
	return cfg
}

func TestEnrollmentHappyPath(t *testing.T) {
	env := newTestEnv(t, func(b *Builder) {
		b.WithConfig(receiptConfig(t)).WithMetricsEnabled(true).WithCodeGenerator(fixedCodes("482913"))
	})
	en := newTestEnrollment(t, env)
	ctx := context.Background()
	orch := en.Orchestrator()

	var steps []Step
	unsub := orch.OnStepChange(func(s Step) { steps = append(steps, s) })
	defer unsub()

	if err := orch.Next(); !errors.Is(err, ErrInvalidAccountType) {
		t.Fatalf("Next without account type: expected ErrInvalidAccountType, got %v", err)
	}
	if err := orch.SelectAccountType("enterprise"); !errors.Is(err, ErrInvalidAccountType) {
		t.Fatalf("expected ErrInvalidAccountType, got %v", err)
	}
	if err := orch.SelectAccountType(AccountBusiness); err != nil {
		t.Fatalf("SelectAccountType failed: %v", err)
	}
	if _, err := en.RequestCode(ctx, "5551234567", ""); !errors.Is(err, ErrInvalidStep) {
		t.Fatalf("RequestCode before phone step: expected ErrInvalidStep, got %v", err)
	}
	if err := orch.Next(); err != nil {
		t.Fatalf("Next failed: %v", err)
	}

	handle, err := en.RequestCode(ctx, " 5551234567 ", "")
	if err != nil {
		t.Fatalf("RequestCode failed: %v", err)
	}
	if handle.Phone != "+1 5551234567" {
		t.Fatalf("default country code not applied: %q", handle.Phone)
	}
	if p := en.Data().Phone; p.Number != "5551234567" || p.IsVerified {
		t.Fatalf("expected unverified phone record, got %+v", p)
	}

	if _, err := en.PhoneReceipt(ctx); !errors.Is(err, ErrReceiptUnavailable) {
		t.Fatalf("receipt before verification: expected ErrReceiptUnavailable, got %v", err)
	}

	input := en.NewCodeInput()
	sub := input.Paste(ctx, "482-913")
	if !sub.Submitted || sub.Err != nil {
		t.Fatalf("expected successful submission, got %+v", sub)
	}
	if !input.Disabled() {
		t.Fatal("input should be disabled once verified")
	}

	data := en.Data()
	if !data.Phone.IsVerified || data.CurrentStep != StepPersonalInfo {
		t.Fatalf("expected verified phone and personal-info step, got %+v", data)
	}

	token, err := en.PhoneReceipt(ctx)
	if err != nil {
		t.Fatalf("PhoneReceipt failed: %v", err)
	}
	claims, err := env.engine.VerifyPhoneReceipt(token)
	if err != nil {
		t.Fatalf("VerifyPhoneReceipt failed: %v", err)
	}
	if claims.Phone != "5551234567" || claims.CountryCode != "+1" || claims.Subject != en.ID() {
		t.Fatalf("unexpected claims %+v", claims)
	}
	if claims.VerifiedAt != testEpoch.Unix() {
		t.Fatalf("expected verified_at %d, got %d", testEpoch.Unix(), claims.VerifiedAt)
	}

	tampered := token[:len(token)-2] + flipChars(token[len(token)-2:])
	if _, err := env.engine.VerifyPhoneReceipt(tampered); !errors.Is(err, ErrReceiptUnavailable) {
		t.Fatalf("tampered receipt: expected ErrReceiptUnavailable, got %v", err)
	}

	bad := PersonalInfo{FirstName: " A ", LastName: "Lovelace", Email: "ada@example.com"}
	if err := orch.SubmitPersonalInfo(bad); !errors.Is(err, ErrInvalidPersonalInfo) {
		t.Fatalf("short first name: expected ErrInvalidPersonalInfo, got %v", err)
	}
	bad = PersonalInfo{FirstName: "Ada", LastName: "Lovelace", Email: "ada@example"}
	if err := orch.SubmitPersonalInfo(bad); !errors.Is(err, ErrInvalidPersonalInfo) {
		t.Fatalf("bad email: expected ErrInvalidPersonalInfo, got %v", err)
	}
	if err := orch.SubmitPersonalInfo(PersonalInfo{FirstName: "  Ada ", LastName: "Lovelace", Email: " ada@example.com "}); err != nil {
		t.Fatalf("SubmitPersonalInfo failed: %v", err)
	}

	data = en.Data()
	if data.CurrentStep != StepComplete || data.PersonalInfo.FirstName != "Ada" || data.PersonalInfo.Email != "ada@example.com" {
		t.Fatalf("unexpected final data %+v", data)
	}
	want := []Step{StepPhoneVerification, StepPersonalInfo, StepComplete}
	if len(steps) != len(want) {
		t.Fatalf("expected steps %v, got %v", want, steps)
	}
	for i := range want {
		if steps[i] != want[i] {
			t.Fatalf("expected steps %v, got %v", want, steps)
		}
	}
	if err := orch.Back(ctx); !errors.Is(err, ErrInvalidStep) {
		t.Fatalf("Back from complete: expected ErrInvalidStep, got %v", err)
	}
	if v := env.engine.MetricsSnapshot().Counters[MetricReceiptIssued]; v != 1 {
		t.Fatalf("expected 1 receipt issued, got %d", v)
	}
}

func flipChars(s string) string {
	var b strings.Builder
	for _, c := range s {
		if c == 'A' {
			b.WriteRune('B')
		} else {
			b.WriteRune('A')
		}
	}
	return b.String()
}

func TestEnrollmentBackFromPhoneCancelsCode(t *testing.T) {
	env := newTestEnv(t, func(b *Builder) { b.WithCodeGenerator(fixedCodes("111111")) })
	en := newTestEnrollment(t, env)
	ctx := context.Background()
	orch := en.Orchestrator()

	if err := orch.SelectAccountType(AccountPersonal); err != nil {
		t.Fatalf("SelectAccountType failed: %v", err)
	}
	if err := orch.Next(); err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if _, err := en.RequestCode(ctx, "5551234567", "+1"); err != nil {
		t.Fatalf("RequestCode failed: %v", err)
	}
	if err := orch.Back(ctx); err != nil {
		t.Fatalf("Back failed: %v", err)
	}
	if en.Data().CurrentStep != StepAccountType {
		t.Fatalf("expected account-type step, got %v", en.Data().CurrentStep)
	}
	if st := en.Session().Status(); st != StatusIdle {
		t.Fatalf("leaving the phone step must abandon the code, got %v", st)
	}
}

func TestEnrollmentBackFromPersonalInfoKeepsVerification(t *testing.T) {
	env := newTestEnv(t, func(b *Builder) { b.WithCodeGenerator(fixedCodes("111111")) })
	en := newTestEnrollment(t, env)
	ctx := context.Background()
	orch := en.Orchestrator()

	_ = orch.SelectAccountType(AccountPersonal)
	_ = orch.Next()
	if _, err := en.RequestCode(ctx, "5551234567", "+1"); err != nil {
		t.Fatalf("RequestCode failed: %v", err)
	}
	if _, err := en.Session().Check(ctx, "111111"); err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if en.Data().CurrentStep != StepPersonalInfo {
		t.Fatalf("expected automatic advance, got %v", en.Data().CurrentStep)
	}

	if err := orch.Back(ctx); err != nil {
		t.Fatalf("Back failed: %v", err)
	}
	if en.Data().CurrentStep != StepPhoneVerification {
		t.Fatalf("expected phone step, got %v", en.Data().CurrentStep)
	}
	if st := en.Session().Status(); st != StatusVerified {
		t.Fatalf("verification must survive going back, got %v", st)
	}
	if err := orch.Back(ctx); err != nil {
		t.Fatalf("Back failed: %v", err)
	}
	if st := en.Session().Status(); st != StatusVerified {
		t.Fatalf("leaving the phone step must not undo verification, got %v", st)
	}
	if err := orch.Next(); err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if err := orch.Next(); err != nil {
		t.Fatalf("Next from verified phone step failed: %v", err)
	}
	if en.Data().CurrentStep != StepPersonalInfo {
		t.Fatalf("expected personal-info step, got %v", en.Data().CurrentStep)
	}
}

func TestEnrollmentEditPhone(t *testing.T) {
	env := newTestEnv(t, func(b *Builder) { b.WithCodeGenerator(fixedCodes("111111", "222222")) })
	en := newTestEnrollment(t, env)
	ctx := context.Background()
	orch := en.Orchestrator()

	if err := orch.EditPhone(ctx); !errors.Is(err, ErrInvalidStep) {
		t.Fatalf("EditPhone on account step: expected ErrInvalidStep, got %v", err)
	}

	_ = orch.SelectAccountType(AccountPersonal)
	_ = orch.Next()
	if _, err := en.RequestCode(ctx, "5551234567", "+1"); err != nil {
		t.Fatalf("RequestCode failed: %v", err)
	}
	input := en.NewCodeInput()
	if sub := input.Paste(ctx, "111111"); sub.Err != nil {
		t.Fatalf("Paste failed: %+v", sub)
	}

	if err := orch.EditPhone(ctx); err != nil {
		t.Fatalf("EditPhone failed: %v", err)
	}
	data := en.Data()
	if data.CurrentStep != StepPhoneVerification || data.Phone != (PhoneRecord{}) {
		t.Fatalf("expected phone step with cleared record, got %+v", data)
	}
	if st := en.Session().Status(); st != StatusIdle {
		t.Fatalf("expected Idle session, got %v", st)
	}
	if input.Disabled() || input.IsComplete() {
		t.Fatal("code input should be cleared and re-enabled after edit")
	}

	if _, err := en.RequestCode(ctx, "5559876543", "+44"); err != nil {
		t.Fatalf("RequestCode after edit failed: %v", err)
	}
	if sub := input.Paste(ctx, "222222"); !sub.Submitted || sub.Err != nil {
		t.Fatalf("expected verification of new number, got %+v", sub)
	}
	if p := en.Data().Phone; p.Number != "5559876543" || p.CountryCode != "+44" || !p.IsVerified {
		t.Fatalf("unexpected phone record %+v", p)
	}
}

func TestEnrollmentLockDisablesInput(t *testing.T) {
	env := newTestEnv(t, func(b *Builder) { b.WithCodeGenerator(fixedCodes("111111")) })
	en := newTestEnrollment(t, env)
	ctx := context.Background()
	orch := en.Orchestrator()

	_ = orch.SelectAccountType(AccountPersonal)
	_ = orch.Next()
	if _, err := en.RequestCode(ctx, "5551234567", "+1"); err != nil {
		t.Fatalf("RequestCode failed: %v", err)
	}
	input := en.NewCodeInput()
	for _, code := range []string{"000000", "000001"} {
		if sub := input.Paste(ctx, code); !errors.Is(sub.Err, ErrCodeInvalid) {
			t.Fatalf("expected ErrCodeInvalid, got %+v", sub)
		}
	}
	if sub := input.Paste(ctx, "000002"); !errors.Is(sub.Err, ErrLocked) {
		t.Fatalf("expected ErrLocked, got %+v", sub)
	}
	if !input.Disabled() {
		t.Fatal("input should be disabled while locked")
	}
	if _, err := en.ResendCode(ctx); !errors.Is(err, ErrLocked) {
		t.Fatalf("expected ErrLocked on resend, got %v", err)
	}

	env.clock.Advance(15 * time.Minute)
	deadline := time.Now().Add(2 * time.Second)
	for input.Disabled() {
		if time.Now().After(deadline) {
			t.Fatal("input not re-enabled after the lock elapsed")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if st := en.Session().Status(); st != StatusIdle {
		t.Fatalf("expected Idle after lock, got %v", st)
	}
}

func TestEnrollmentReceiptDisabled(t *testing.T) {
	env := newTestEnv(t, func(b *Builder) { b.WithCodeGenerator(fixedCodes("111111")) })
	en := newTestEnrollment(t, env)
	ctx := context.Background()

	_ = en.Orchestrator().SelectAccountType(AccountPersonal)
	_ = en.Orchestrator().Next()
	if _, err := en.RequestCode(ctx, "5551234567", "+1"); err != nil {
		t.Fatalf("RequestCode failed: %v", err)
	}
	if _, err := en.Session().Check(ctx, "111111"); err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if _, err := en.PhoneReceipt(ctx); !errors.Is(err, ErrReceiptDisabled) {
		t.Fatalf("expected ErrReceiptDisabled, got %v", err)
	}
	if _, err := env.engine.VerifyPhoneReceipt("x.y.z"); !errors.Is(err, ErrReceiptDisabled) {
		t.Fatalf("expected ErrReceiptDisabled, got %v", err)
	}
}

func TestEnrollmentAuditCarriesTenantAndMaskedPhone(t *testing.T) {
	sink := NewChannelSink(64)
	env := newTestEnv(t, func(b *Builder) {
		cfg := DefaultConfig()
		cfg.Audit.Enabled = true
		b.WithConfig(cfg).WithAuditSink(sink).WithCodeGenerator(fixedCodes("111111"))
	})
	en := newTestEnrollment(t, env)
	ctx := context.Background()

	_ = en.Orchestrator().SelectAccountType(AccountPersonal)
	_ = en.Orchestrator().Next()
	if _, err := en.RequestCode(ctx, "5551234567", "+1"); err != nil {
		t.Fatalf("RequestCode failed: %v", err)
	}

	env.engine.Close()
	var issued *AuditEvent
	for {
		select {
		case ev := <-sink.Events():
			if ev.EventType == auditEventCodeIssued {
				ev := ev
				issued = &ev
			}
			continue
		default:
		}
		break
	}
	if issued == nil {
		t.Fatal("expected a code_issued audit event")
	}
	if issued.TenantID != "tenant-a" || issued.EnrollmentID != en.ID() {
		t.Fatalf("unexpected audit identity %+v", issued)
	}
	if issued.Phone != "******4567" {
		t.Fatalf("expected masked phone, got %q", issued.Phone)
	}
}
