package goEnroll

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/MrEthical07/goEnroll/internal"
	"github.com/MrEthical07/goEnroll/internal/phone"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// VerificationSession owns the lifecycle of one outstanding verification
// code: issuance, expiry, resend cooldown, attempt counting and lockout.
//
// All methods are safe for concurrent use. Deadlines are evaluated on every
// call as well as by timers, so an expired code is never accepted even if its
// timer has not fired yet. Timers carry the generation that armed them and do
// nothing once the generation has moved on.
//
// Collaborators (Delivery, PhoneRecorder, subscribers, audit) are invoked
// after the session lock is released, so they may call back into the session.
// Subscribers may be called from timer goroutines.
type VerificationSession struct {
	engine       *Engine
	recorder     PhoneRecorder
	enrollmentID string
	logger       *zap.Logger

	mu              sync.Mutex
	id              string
	tenantID        string
	status          SessionStatus
	generation      uint64
	codeHash        [32]byte
	hasCode         bool
	phone           string
	countryCode     string
	attempts        int
	issuedAt        time.Time
	expiresAt       time.Time
	resendAt        time.Time
	resendAnnounced bool
	lockUntil       time.Time
	verifiedAt      time.Time

	expiryTimer clockwork.Timer
	resendTimer clockwork.Timer
	lockTimer   clockwork.Timer

	subs    []sessionSubscriber
	nextSub uint64
}

type sessionSubscriber struct {
	id uint64
	fn func(SessionEvent)
}

// sessionEffects collects everything a transition wants to tell the outside
// world. It is filled under the lock and flushed after unlocking.
type sessionEffects struct {
	delivery *DeliveryRequest
	record   *PhoneRecord
	// issueKey is the limiter counter to clear after a verification.
	issueKey *issueCounterKey
	events   []SessionEvent
	audits   []pendingAudit
	subs     []sessionSubscriber
}

type issueCounterKey struct {
	tenantID string
	phone    string
}

type pendingAudit struct {
	eventType string
	success   bool
	err       error
	sessionID string
	tenantID  string
	phone     string
	metadata  map[string]string
}

func newVerificationSession(e *Engine, recorder PhoneRecorder, enrollmentID string) *VerificationSession {
	return &VerificationSession{
		engine:       e,
		recorder:     recorder,
		enrollmentID: enrollmentID,
		logger:       e.logger.With(zap.String("enrollment_id", enrollmentID)),
		status:       StatusIdle,
	}
}

// Issue validates the phone number and arms a fresh code for it, superseding
// any outstanding code and clearing any lock. The code goes only to the
// Engine's Delivery; a delivery failure does not fail Issue.
func (s *VerificationSession) Issue(ctx context.Context, phoneNumber, countryCode string) (SessionHandle, error) {
	if s == nil || s.engine == nil {
		return SessionHandle{}, ErrEngineNotReady
	}
	if err := s.engine.validator.Validate(phoneNumber, countryCode); err != nil {
		return SessionHandle{}, ErrInvalidPhone
	}

	fx := &sessionEffects{}
	s.mu.Lock()
	now := s.engine.clock.Now()
	s.advanceLocked(now, fx)

	if s.status == StatusVerified {
		s.release(ctx, fx)
		return SessionHandle{}, ErrAlreadyVerified
	}

	handle, err := s.issueLocked(ctx, now, phoneNumber, countryCode, false, fx)
	s.release(ctx, fx)
	return handle, err
}

// Resend reissues a code to the number of the current session once the resend
// cooldown has elapsed. The stored number is not validated again.
func (s *VerificationSession) Resend(ctx context.Context) (SessionHandle, error) {
	if s == nil || s.engine == nil {
		return SessionHandle{}, ErrEngineNotReady
	}

	fx := &sessionEffects{}
	s.mu.Lock()
	now := s.engine.clock.Now()
	s.advanceLocked(now, fx)

	var (
		handle SessionHandle
		err    error
	)
	switch s.status {
	case StatusLocked:
		s.engine.metricInc(MetricCheckWhileLocked)
		err = ErrLocked
	case StatusVerified:
		err = ErrAlreadyVerified
	case StatusIdle:
		err = ErrNoActiveCode
	default:
		if now.Before(s.resendAt) {
			s.engine.metricInc(MetricResendCooldownDenied)
			err = ErrCooldownActive
			break
		}
		handle, err = s.issueLocked(ctx, now, s.phone, s.countryCode, true, fx)
	}

	s.release(ctx, fx)
	return handle, err
}

// Check compares candidate with the outstanding code. Only a mismatch against
// a live code consumes an attempt; the attempt that reaches the cap locks the
// session and returns ErrLocked.
func (s *VerificationSession) Check(ctx context.Context, candidate string) (CheckResult, error) {
	if s == nil || s.engine == nil {
		return CheckResult{}, ErrEngineNotReady
	}
	start := time.Now()
	defer func() {
		s.engine.metricObserve(MetricCheckLatency, time.Since(start))
	}()

	fx := &sessionEffects{}
	s.mu.Lock()
	now := s.engine.clock.Now()
	s.advanceLocked(now, fx)

	result, err := s.checkLocked(now, candidate, fx)
	s.release(ctx, fx)
	return result, err
}

func (s *VerificationSession) checkLocked(now time.Time, candidate string, fx *sessionEffects) (CheckResult, error) {
	cfg := s.engine.config.Verification

	switch s.status {
	case StatusLocked:
		s.engine.metricInc(MetricCheckWhileLocked)
		return CheckResult{Status: StatusLocked, LockedUntil: s.lockUntil}, ErrLocked
	case StatusVerified:
		return CheckResult{Status: StatusVerified}, ErrAlreadyVerified
	case StatusIdle:
		return CheckResult{Status: StatusIdle}, ErrNoActiveCode
	case StatusExpired:
		s.engine.metricInc(MetricCheckExpired)
		return CheckResult{Status: StatusExpired}, ErrCodeExpired
	}

	if s.hasCode && internal.CodeEqual(candidate, s.codeHash) {
		s.verifyLocked(now, fx)
		return CheckResult{Status: StatusVerified}, nil
	}

	s.attempts++
	remaining := cfg.MaxAttempts - s.attempts
	if remaining <= 0 {
		s.lockLocked(now, fx)
		return CheckResult{Status: StatusLocked, LockedUntil: s.lockUntil}, ErrLocked
	}

	s.engine.metricInc(MetricCheckInvalid)
	fx.events = append(fx.events, s.eventLocked(EventAttemptFailed, now, time.Time{}))
	fx.audits = append(fx.audits, s.auditLocked(auditEventCheckFailed, false, ErrCodeInvalid, map[string]string{
		"attempts_remaining": strconv.Itoa(remaining),
	}))
	return CheckResult{Status: StatusAwaitingInput, AttemptsRemaining: remaining}, ErrCodeInvalid
}

// EditPhone discards everything, including a verification or a lock, and
// returns to Idle.
func (s *VerificationSession) EditPhone(ctx context.Context) {
	if s == nil || s.engine == nil {
		return
	}

	fx := &sessionEffects{}
	s.mu.Lock()
	now := s.engine.clock.Now()
	prev := s.status
	audit := s.auditLocked(auditEventReset, true, nil, map[string]string{"from": prev.String()})

	s.resetLocked()
	s.engine.metricInc(MetricSessionReset)
	fx.events = append(fx.events, s.eventLocked(EventReset, now, time.Time{}))
	fx.audits = append(fx.audits, audit)
	s.release(ctx, fx)
}

// Cancel abandons an outstanding or expired code. It does nothing when the
// session is Verified or Locked: leaving a step must neither undo a
// verification nor lift a lock.
func (s *VerificationSession) Cancel(ctx context.Context) {
	if s == nil || s.engine == nil {
		return
	}

	fx := &sessionEffects{}
	s.mu.Lock()
	now := s.engine.clock.Now()
	s.advanceLocked(now, fx)

	if s.status == StatusAwaitingInput || s.status == StatusExpired {
		audit := s.auditLocked(auditEventCancelled, true, nil, nil)
		s.resetLocked()
		fx.events = append(fx.events, s.eventLocked(EventCancelled, now, time.Time{}))
		fx.audits = append(fx.audits, audit)
	}
	s.release(ctx, fx)
}

// Status reports the current status after applying elapsed deadlines.
func (s *VerificationSession) Status() SessionStatus {
	return s.Snapshot().Status
}

// Snapshot copies the observable state. It never includes the code.
func (s *VerificationSession) Snapshot() SessionSnapshot {
	if s == nil || s.engine == nil {
		return SessionSnapshot{}
	}

	fx := &sessionEffects{}
	s.mu.Lock()
	s.advanceLocked(s.engine.clock.Now(), fx)
	snap := SessionSnapshot{
		ID:                s.id,
		Status:            s.status,
		Generation:        s.generation,
		Phone:             s.phone,
		CountryCode:       s.countryCode,
		AttemptsUsed:      s.attempts,
		AttemptsRemaining: s.remainingLocked(),
		IssuedAt:          s.issuedAt,
		ExpiresAt:         s.expiresAt,
		ResendAvailableAt: s.resendAt,
		LockedUntil:       s.lockUntil,
		VerifiedAt:        s.verifiedAt,
	}
	s.release(context.Background(), fx)
	return snap
}

// Subscribe registers fn for every SessionEvent and returns a function that
// removes it.
func (s *VerificationSession) Subscribe(fn func(SessionEvent)) func() {
	if s == nil || fn == nil {
		return func() {}
	}

	s.mu.Lock()
	s.nextSub++
	id := s.nextSub
	s.subs = append(s.subs, sessionSubscriber{id: id, fn: fn})
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			for i, sub := range s.subs {
				if sub.id == id {
					s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
					return
				}
			}
		})
	}
}

func (s *VerificationSession) issueLocked(
	ctx context.Context,
	now time.Time,
	phoneNumber string,
	countryCode string,
	resend bool,
	fx *sessionEffects,
) (SessionHandle, error) {
	cfg := s.engine.config.Verification
	formatted := phone.Format(countryCode, phoneNumber)
	tenantID := tenantIDFromContext(ctx)

	if err := s.engine.enforceIssueLimit(ctx, tenantID, formatted); err != nil {
		if errors.Is(err, ErrIssueRateLimited) {
			s.engine.metricInc(MetricIssueRateLimited)
		} else {
			s.logger.Warn("issue limiter unavailable",
				zap.String("phone_masked", phone.Mask(phoneNumber)),
				zap.Error(err),
			)
		}
		fx.audits = append(fx.audits, pendingAudit{
			eventType: auditEventIssueRateLimited,
			err:       err,
			sessionID: s.id,
			tenantID:  tenantID,
			phone:     phone.Mask(phoneNumber),
		})
		return SessionHandle{}, err
	}

	code, err := s.engine.codeGen(cfg.CodeLength)
	if err != nil {
		return SessionHandle{}, fmt.Errorf("generate verification code: %w", err)
	}
	if len(code) != cfg.CodeLength || !internal.IsDigits(code) {
		return SessionHandle{}, fmt.Errorf("generate verification code: got %d characters, want %d digits", len(code), cfg.CodeLength)
	}

	s.stopTimersLocked()
	s.generation++
	gen := s.generation

	s.id = uuid.NewString()
	s.tenantID = tenantID
	s.status = StatusAwaitingInput
	s.codeHash = internal.HashCode(code)
	s.hasCode = true
	s.phone = phoneNumber
	s.countryCode = countryCode
	s.attempts = 0
	s.lockUntil = time.Time{}
	s.verifiedAt = time.Time{}
	s.issuedAt = now
	s.expiresAt = now.Add(cfg.CodeTTL)
	s.resendAt = now.Add(cfg.ResendCooldown)
	s.resendAnnounced = cfg.ResendCooldown <= 0

	s.expiryTimer = s.engine.clock.AfterFunc(cfg.CodeTTL, func() { s.onTimer(gen) })
	if !s.resendAnnounced {
		s.resendTimer = s.engine.clock.AfterFunc(cfg.ResendCooldown, func() { s.onTimer(gen) })
	}

	fx.delivery = &DeliveryRequest{
		SessionID:   s.id,
		PhoneNumber: phoneNumber,
		CountryCode: countryCode,
		Code:        code,
		ExpiresAt:   s.expiresAt,
	}

	kind, metric, auditType := EventIssued, MetricCodeIssued, auditEventCodeIssued
	if resend {
		kind, metric, auditType = EventResent, MetricCodeResent, auditEventCodeResent
	}
	s.engine.metricInc(metric)
	fx.events = append(fx.events, s.eventLocked(kind, now, s.expiresAt))
	fx.audits = append(fx.audits, s.auditLocked(auditType, true, nil, map[string]string{
		"expires_at": s.expiresAt.UTC().Format(time.RFC3339),
	}))

	return SessionHandle{
		SessionID:         s.id,
		Generation:        gen,
		Phone:             formatted,
		IssuedAt:          s.issuedAt,
		ExpiresAt:         s.expiresAt,
		ResendAvailableAt: s.resendAt,
	}, nil
}

func (s *VerificationSession) verifyLocked(now time.Time, fx *sessionEffects) {
	s.stopTimersLocked()
	s.generation++
	s.status = StatusVerified
	s.hasCode = false
	s.codeHash = [32]byte{}
	s.verifiedAt = now

	s.engine.metricInc(MetricCheckSuccess)
	fx.record = &PhoneRecord{Number: s.phone, CountryCode: s.countryCode, IsVerified: true}
	fx.issueKey = &issueCounterKey{tenantID: s.tenantID, phone: phone.Format(s.countryCode, s.phone)}
	fx.events = append(fx.events, s.eventLocked(EventVerified, now, time.Time{}))
	fx.audits = append(fx.audits, s.auditLocked(auditEventVerified, true, nil, map[string]string{
		"attempts_used": strconv.Itoa(s.attempts + 1),
	}))
}

func (s *VerificationSession) lockLocked(now time.Time, fx *sessionEffects) {
	lockFor := s.engine.config.Verification.LockDuration

	s.stopTimersLocked()
	s.generation++
	gen := s.generation
	s.status = StatusLocked
	s.hasCode = false
	s.codeHash = [32]byte{}
	s.lockUntil = now.Add(lockFor)
	s.lockTimer = s.engine.clock.AfterFunc(lockFor, func() { s.onTimer(gen) })

	s.engine.metricInc(MetricSessionLocked)
	fx.events = append(fx.events, s.eventLocked(EventLocked, now, s.lockUntil))
	fx.audits = append(fx.audits, s.auditLocked(auditEventLocked, false, ErrLocked, map[string]string{
		"attempts":     strconv.Itoa(s.attempts),
		"locked_until": s.lockUntil.UTC().Format(time.RFC3339),
	}))
}

// advanceLocked applies every deadline that has passed by now: resend
// availability, then code expiry, then lock release.
func (s *VerificationSession) advanceLocked(now time.Time, fx *sessionEffects) {
	switch s.status {
	case StatusAwaitingInput, StatusExpired:
		if !s.resendAnnounced && !now.Before(s.resendAt) {
			s.resendAnnounced = true
			fx.events = append(fx.events, s.eventLocked(EventResendAvailable, s.resendAt, s.resendAt))
		}
		if s.status == StatusAwaitingInput && !now.Before(s.expiresAt) {
			s.status = StatusExpired
			s.hasCode = false
			s.codeHash = [32]byte{}
			if s.expiryTimer != nil {
				s.expiryTimer.Stop()
				s.expiryTimer = nil
			}
			fx.events = append(fx.events, s.eventLocked(EventExpired, s.expiresAt, s.expiresAt))
			fx.audits = append(fx.audits, s.auditLocked(auditEventCodeExpired, false, ErrCodeExpired, nil))
		}
	case StatusLocked:
		if !now.Before(s.lockUntil) {
			lockedUntil := s.lockUntil
			audit := s.auditLocked(auditEventUnlocked, true, nil, nil)
			s.resetLocked()
			fx.events = append(fx.events, s.eventLocked(EventUnlocked, lockedUntil, time.Time{}))
			fx.audits = append(fx.audits, audit)
		}
	}
}

// onTimer is the single callback for every timer. It only re-evaluates
// deadlines, so a late or duplicate firing is harmless.
func (s *VerificationSession) onTimer(gen uint64) {
	fx := &sessionEffects{}
	s.mu.Lock()
	if s.generation != gen {
		s.mu.Unlock()
		return
	}
	s.advanceLocked(s.engine.clock.Now(), fx)
	s.release(context.Background(), fx)
}

// resetLocked returns to Idle, forgetting the phone, code, attempts and lock.
func (s *VerificationSession) resetLocked() {
	s.stopTimersLocked()
	s.generation++
	s.status = StatusIdle
	s.hasCode = false
	s.codeHash = [32]byte{}
	s.phone = ""
	s.countryCode = ""
	s.attempts = 0
	s.issuedAt = time.Time{}
	s.expiresAt = time.Time{}
	s.resendAt = time.Time{}
	s.resendAnnounced = false
	s.lockUntil = time.Time{}
	s.verifiedAt = time.Time{}
}

// stop cancels pending timers without changing state. Deadlines are still
// applied lazily on the next call.
func (s *VerificationSession) stop() {
	s.mu.Lock()
	s.stopTimersLocked()
	s.mu.Unlock()
}

func (s *VerificationSession) stopTimersLocked() {
	for _, t := range []*clockwork.Timer{&s.expiryTimer, &s.resendTimer, &s.lockTimer} {
		if *t != nil {
			(*t).Stop()
			*t = nil
		}
	}
}

func (s *VerificationSession) remainingLocked() int {
	switch s.status {
	case StatusAwaitingInput, StatusExpired:
		return s.engine.config.Verification.MaxAttempts - s.attempts
	default:
		return 0
	}
}

func (s *VerificationSession) eventLocked(kind EventKind, at, deadline time.Time) SessionEvent {
	return SessionEvent{
		Kind:              kind,
		SessionID:         s.id,
		Generation:        s.generation,
		Status:            s.status,
		AttemptsRemaining: s.remainingLocked(),
		At:                at,
		Deadline:          deadline,
	}
}

func (s *VerificationSession) auditLocked(eventType string, success bool, err error, metadata map[string]string) pendingAudit {
	return pendingAudit{
		eventType: eventType,
		success:   success,
		err:       err,
		sessionID: s.id,
		tenantID:  s.tenantID,
		phone:     phone.Mask(s.phone),
		metadata:  metadata,
	}
}

// release unlocks s.mu and then runs the collected side effects.
func (s *VerificationSession) release(ctx context.Context, fx *sessionEffects) {
	if len(fx.events) > 0 {
		fx.subs = append([]sessionSubscriber(nil), s.subs...)
	}
	s.mu.Unlock()
	s.flush(ctx, fx)
}

func (s *VerificationSession) flush(ctx context.Context, fx *sessionEffects) {
	if ctx == nil {
		ctx = context.Background()
	}

	if fx.delivery != nil {
		if err := s.engine.delivery.Deliver(ctx, *fx.delivery); err != nil {
			s.engine.metricInc(MetricDeliveryFailure)
			s.logger.Warn("code delivery failed",
				zap.String("session_id", fx.delivery.SessionID),
				zap.String("phone_masked", phone.Mask(fx.delivery.PhoneNumber)),
				zap.Error(err),
			)
			fx.audits = append(fx.audits, pendingAudit{
				eventType: auditEventDeliveryFailed,
				err:       fmt.Errorf("%w: %v", errDeliveryFailed, err),
				sessionID: fx.delivery.SessionID,
				tenantID:  tenantIDFromContext(ctx),
				phone:     phone.Mask(fx.delivery.PhoneNumber),
			})
		}
	}

	if fx.issueKey != nil {
		if err := s.engine.resetIssueLimit(ctx, fx.issueKey.tenantID, fx.issueKey.phone); err != nil {
			s.logger.Warn("issue limiter reset failed", zap.Error(err))
		}
	}

	if fx.record != nil && s.recorder != nil {
		s.recorder.SetPhoneData(*fx.record)
	}

	for _, ev := range fx.events {
		for _, sub := range fx.subs {
			sub.fn(ev)
		}
	}

	for _, a := range fx.audits {
		s.engine.emitAudit(ctx, a.eventType, a.success, s.enrollmentID, a.sessionID, a.tenantID, a.phone, a.err, a.metadata)
	}
}
