package goEnroll

import (
	"context"
	"sync"

	"github.com/MrEthical07/goEnroll/internal/phone"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// DeliveryFunc adapts a function to [Delivery].
type DeliveryFunc func(ctx context.Context, req DeliveryRequest) error

func (f DeliveryFunc) Deliver(ctx context.Context, req DeliveryRequest) error {
	if f == nil {
		return nil
	}
	return f(ctx, req)
}

// NoopDelivery drops every code. It is the Builder default, which makes an
// Engine without a configured transport usable only for tests and demos.
type NoopDelivery struct{}

func (NoopDelivery) Deliver(context.Context, DeliveryRequest) error { return nil }

// MemoryOutbox keeps the most recent code per session until it expires.
// Meant for development and tests.
type MemoryOutbox struct {
	clock clockwork.Clock

	mu        sync.Mutex
	bySession map[string]DeliveryRequest
	byPhone   map[string]string
	sent      int
}

// NewMemoryOutbox returns an empty outbox. A nil clock means real time.
func NewMemoryOutbox(clock clockwork.Clock) *MemoryOutbox {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &MemoryOutbox{
		clock:     clock,
		bySession: make(map[string]DeliveryRequest),
		byPhone:   make(map[string]string),
	}
}

func (o *MemoryOutbox) Deliver(_ context.Context, req DeliveryRequest) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.bySession[req.SessionID] = req
	o.byPhone[phone.Format(req.CountryCode, req.PhoneNumber)] = req.SessionID
	o.sent++
	return nil
}

// Code returns the latest unexpired code delivered for sessionID.
func (o *MemoryOutbox) Code(sessionID string) (string, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	req, ok := o.bySession[sessionID]
	if !ok {
		return "", false
	}
	if !req.ExpiresAt.IsZero() && !o.clock.Now().Before(req.ExpiresAt) {
		delete(o.bySession, sessionID)
		return "", false
	}
	return req.Code, true
}

// CodeForPhone looks up the latest code sent to "<countryCode> <number>".
func (o *MemoryOutbox) CodeForPhone(countryCode, number string) (string, bool) {
	o.mu.Lock()
	sessionID, ok := o.byPhone[phone.Format(countryCode, number)]
	o.mu.Unlock()
	if !ok {
		return "", false
	}
	return o.Code(sessionID)
}

// Sent reports how many codes have been delivered in total.
func (o *MemoryOutbox) Sent() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.sent
}

// LogDelivery writes codes to a zap logger in clear text. The Builder refuses
// it when ProductionMode is set.
type LogDelivery struct {
	Logger *zap.Logger
}

func (d LogDelivery) Deliver(_ context.Context, req DeliveryRequest) error {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("verification code",
		zap.String("session_id", req.SessionID),
		zap.String("phone", phone.Format(req.CountryCode, req.PhoneNumber)),
		zap.String("code", req.Code),
		zap.Time("expires_at", req.ExpiresAt),
	)
	return nil
}

func isLogDelivery(d Delivery) bool {
	switch d.(type) {
	case LogDelivery, *LogDelivery:
		return true
	}
	return false
}
