package signal

import (
	"context"
	"testing"
	"time"
)

func TestPublishConsume(t *testing.T) {
	hub := NewHub()

	hub.Publish(Reissue{ActorID: "owner-1", Reason: "subscription.updated"})
	hub.Publish(Reissue{ActorID: "owner-1", Reason: "subscription.canceled"})

	sig, ok := hub.Consume("owner-1")
	if !ok {
		t.Fatal("expected pending signal")
	}
	if sig.Reason != "subscription.canceled" {
		t.Fatalf("later signal should replace earlier, got %q", sig.Reason)
	}
	if sig.EmittedAt.IsZero() {
		t.Fatal("EmittedAt not defaulted")
	}

	if _, ok := hub.Consume("owner-1"); ok {
		t.Fatal("signal consumed twice")
	}
}

func TestConsumeUnknownActor(t *testing.T) {
	hub := NewHub()
	if _, ok := hub.Consume("nobody"); ok {
		t.Fatal("expected no pending signal")
	}
}

func TestSubscribeDelivers(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := hub.Subscribe(ctx)
	hub.Publish(Reissue{ActorID: "tenant-1", Reason: "payment.failed"})

	select {
	case sig := <-ch:
		if sig.ActorID != "tenant-1" {
			t.Fatalf("unexpected signal: %+v", sig)
		}
	case <-time.After(time.Second):
		t.Fatal("subscriber did not receive signal")
	}
}

func TestSubscribeClosedOnContextEnd(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	ch := hub.Subscribe(ctx)
	cancel()

	select {
	case _, open := <-ch:
		if open {
			t.Fatal("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed after context end")
	}
}

func TestPublishIgnoresEmptyActor(t *testing.T) {
	hub := NewHub()
	hub.Publish(Reissue{Reason: "noise"})
	if _, ok := hub.Consume(""); ok {
		t.Fatal("empty actor id must not be recorded")
	}
}
