package goEnroll

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestMemoryOutboxExpiresWithCode(t *testing.T) {
	clock := clockwork.NewFakeClockAt(testEpoch)
	o := NewMemoryOutbox(clock)

	err := o.Deliver(context.Background(), DeliveryRequest{
		SessionID:   "s1",
		PhoneNumber: "5551234567",
		CountryCode: "+1",
		Code:        "123456",
		ExpiresAt:   testEpoch.Add(time.Minute),
	})
	if err != nil {
		t.Fatalf("Deliver failed: %v", err)
	}

	if code, ok := o.CodeForPhone("+1", "5551234567"); !ok || code != "123456" {
		t.Fatalf("expected code by phone, got %q (%v)", code, ok)
	}
	clock.Advance(time.Minute)
	if _, ok := o.Code("s1"); ok {
		t.Fatal("expired code still retrievable")
	}
	if o.Sent() != 1 {
		t.Fatalf("expected 1 sent, got %d", o.Sent())
	}
}

func TestLogDeliveryWritesCode(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	d := LogDelivery{Logger: zap.New(core)}

	if err := d.Deliver(context.Background(), DeliveryRequest{SessionID: "s1", PhoneNumber: "5551234567", CountryCode: "+1", Code: "654321"}); err != nil {
		t.Fatalf("Deliver failed: %v", err)
	}
	entries := logs.FilterField(zap.String("code", "654321")).All()
	if len(entries) != 1 {
		t.Fatalf("expected the code in one log entry, got %d", len(entries))
	}
	if !isLogDelivery(d) || !isLogDelivery(&d) || isLogDelivery(NoopDelivery{}) {
		t.Fatal("isLogDelivery misclassified a delivery")
	}
}
