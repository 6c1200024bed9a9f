package subscription

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestIndex_SubscribeUnpacksToConnID(t *testing.T) {
	idx := NewIndex(1000)
	wire := idx.Subscribe("speed-uuid", 7)

	connID, uuid := wire/1000, wire%1000
	_ = uuid
	if connID != 7 {
		t.Errorf("wire sub-id %d does not unpack to conn-id 7 under mask 1000", wire)
	}
}

func TestIndex_SubscribeUnsubscribe(t *testing.T) {
	idx := NewIndex(0)
	wire := idx.Subscribe("speed-uuid", 1)

	subs := idx.Subscribers("speed-uuid")
	if len(subs) != 1 || subs[wire] != 1 {
		t.Fatalf("unexpected subscribers: %+v", subs)
	}

	connID, ok := idx.Unsubscribe(wire)
	if !ok || connID != 1 {
		t.Fatalf("Unsubscribe(%d) = (%d, %v), want (1, true)", wire, connID, ok)
	}
	if len(idx.Subscribers("speed-uuid")) != 0 {
		t.Error("expected no subscribers after unsubscribe")
	}
	if _, ok := idx.Unsubscribe(wire); ok {
		t.Error("expected second unsubscribe of the same sub-id to fail")
	}
}

func TestIndex_UnsubscribeAll(t *testing.T) {
	idx := NewIndex(0)
	idx.Subscribe("a", 1)
	idx.Subscribe("b", 1)
	idx.Subscribe("a", 2)

	n := idx.UnsubscribeAll(1)
	if n != 2 {
		t.Errorf("UnsubscribeAll(1) removed %d, want 2", n)
	}
	if len(idx.Subscribers("a")) != 1 {
		t.Error("expected conn 2's subscription to 'a' to survive")
	}
	if len(idx.Subscribers("b")) != 0 {
		t.Error("expected 'b' to have no subscribers left")
	}
}

func TestIndex_DistinctConnsGetDistinctWireIDs(t *testing.T) {
	idx := NewIndex(1000)
	w1 := idx.Subscribe("x", 1)
	w2 := idx.Subscribe("x", 2)
	if w1/1000 != 1 || w2/1000 != 2 {
		t.Errorf("expected wire ids to decode to their owning conn-id, got %d and %d", w1, w2)
	}
}

func TestEngine_PublishDeliversToAllSubscribers(t *testing.T) {
	var mu sync.Mutex
	delivered := map[uint32]int{}

	e, err := NewEngine(0, 0, func(connID uint32, payload []byte) error {
		mu.Lock()
		delivered[connID]++
		mu.Unlock()
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := e.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer e.Stop(time.Second)

	e.Index.Subscribe("speed-uuid", 1)
	e.Index.Subscribe("speed-uuid", 2)

	e.Publish("speed-uuid", 42.0, 1000)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		done := delivered[1] == 1 && delivered[2] == 1
		mu.Unlock()
		if done {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected both subscribers to receive the update, got %+v", delivered)
}

func TestEngine_PublishToNoSubscribersIsNoop(t *testing.T) {
	called := false
	e, err := NewEngine(0, 0, func(connID uint32, payload []byte) error {
		called = true
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := e.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer e.Stop(time.Second)

	e.Publish("nobody-subscribed", 1.0, 1000)
	time.Sleep(100 * time.Millisecond)
	if called {
		t.Error("expected no delivery when there are no subscribers")
	}
}
