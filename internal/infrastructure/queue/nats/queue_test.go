package nats

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/mmembroidery/tryon-studio/internal/core/domain"
)

func TestOrderMessageRoundTrip(t *testing.T) {
	order := domain.SubmittedOrder{
		ID:        "ord-1",
		SessionID: "s-1",
		Order: domain.CustomOrder{
			Material:   "Silk",
			Occasion:   "Wedding",
			DesignFile: "data:image/png;base64,QQ==",
		},
		SubmittedAt: time.Date(2026, 10, 17, 10, 0, 0, 0, time.UTC),
	}

	msg, err := encodeOrder("orders", order)
	if err != nil {
		t.Fatalf("encodeOrder() error = %v", err)
	}
	if msg.Subject != "orders" || msg.Header.Get(orderIDHeader) != "ord-1" {
		t.Fatalf("unexpected message envelope: subject=%q headers=%v", msg.Subject, msg.Header)
	}

	got, err := decodeOrder(msg)
	if err != nil {
		t.Fatalf("decodeOrder() error = %v", err)
	}
	if got.ID != "ord-1" || got.Order.Material != "Silk" || got.Order.DesignFile != order.Order.DesignFile {
		t.Fatalf("unexpected decoded order: %+v", got)
	}
	if !got.SubmittedAt.Equal(order.SubmittedAt) {
		t.Fatalf("unexpected timestamp %v", got.SubmittedAt)
	}
}

func TestDecodeOrderRejectsGarbage(t *testing.T) {
	if _, err := decodeOrder(&nats.Msg{Data: []byte("{")}); err == nil {
		t.Fatalf("expected error for invalid json")
	}
	if _, err := decodeOrder(&nats.Msg{Data: []byte(`{"sessionId":"s"}`)}); err == nil {
		t.Fatalf("expected error for missing id")
	}
}

func TestClassifyNATSError(t *testing.T) {
	if v := classifyNATSError(fmt.Errorf("publish: %w", nats.ErrConnectionClosed)); !v.Retry || !v.CountAsFailure {
		t.Fatalf("closed connection should be retryable, got %+v", v)
	}
	if v := classifyNATSError(nats.ErrMaxPayload); v.Retry || v.CountAsFailure {
		t.Fatalf("oversized payload must be permanent and not trip the breaker, got %+v", v)
	}
	if v := classifyNATSError(context.Canceled); v.Retry {
		t.Fatalf("cancellation must not retry")
	}
}

func TestWrapTemporaryIfNeeded(t *testing.T) {
	if err := wrapTemporaryIfNeeded(nats.ErrNoServers); !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary, got %v", err)
	}
	permanent := errors.New("bad subject")
	if err := wrapTemporaryIfNeeded(permanent); domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected permanent error untouched, got %v", err)
	}
	if wrapTemporaryIfNeeded(nil) != nil {
		t.Fatalf("nil must stay nil")
	}
}
