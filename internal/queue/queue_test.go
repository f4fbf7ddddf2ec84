package queue

import (
	"context"
	"testing"
	"time"
)

func TestSerializeRoundTrip(t *testing.T) {
	msg := deserialize(serialize(Message{Type: TypeCheckIn, Body: []byte("rec|with|pipes")}))
	if msg.Type != TypeCheckIn || string(msg.Body) != "rec|with|pipes" {
		t.Fatalf("unexpected message: %q %q", msg.Type, msg.Body)
	}

	bare := deserialize("no-type")
	if bare.Type != "" || string(bare.Body) != "no-type" {
		t.Fatalf("expected untyped body, got %q %q", bare.Type, bare.Body)
	}
}

func TestInMemoryDeliversInOrder(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	q := NewInMemory(4)
	for _, id := range []string{"a", "b", "c"} {
		if err := q.Publish(ctx, Message{Type: TypeCheckIn, Body: []byte(id)}); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}
	msgs, err := q.Consume(ctx)
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	for _, want := range []string{"a", "b", "c"} {
		select {
		case m := <-msgs:
			if string(m.Body) != want {
				t.Fatalf("expected %s, got %s", want, m.Body)
			}
		case <-ctx.Done():
			t.Fatalf("timed out waiting for %s", want)
		}
	}
}

func TestInMemoryConsumeStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	msgs, err := NewInMemory(1).Consume(ctx)
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	cancel()
	select {
	case _, ok := <-msgs:
		if ok {
			t.Fatalf("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatalf("consumer did not stop")
	}
}

func TestInMemoryPublishRespectsContext(t *testing.T) {
	q := NewInMemory(0)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := q.Publish(ctx, Message{Type: TypeCheckIn}); err == nil {
		t.Fatalf("expected publish to fail without a consumer")
	}
}
