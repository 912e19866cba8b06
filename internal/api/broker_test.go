package api

import (
    "testing"
    "time"

    redis "github.com/redis/go-redis/v9"
)

func TestBrokerPublishSubscribe(t *testing.T) {
    b := NewBroker()
    oid := "o1"
    ch := b.Subscribe(oid)
    defer func() { recover() }() // ignore close panic if already closed

    evt := SSEEvent{Type: "order.transitioned", Data: map[string]any{"toStatus": "picked_up"}}
    b.Publish(oid, evt)

    select {
    case got := <-ch:
        if got.Type != evt.Type { t.Fatalf("got type %s, want %s", got.Type, evt.Type) }
        if got.Data["toStatus"].(string) != "picked_up" { t.Fatalf("bad payload: %+v", got.Data) }
    case <-time.After(200 * time.Millisecond):
        t.Fatal("timeout waiting for event")
    }

    b.Unsubscribe(oid, ch)
    select {
    case _, ok := <-ch:
        if ok { t.Fatal("channel should be closed after unsubscribe") }
    case <-time.After(50 * time.Millisecond):
        // acceptable if already drained and closed
    }
}

func TestBrokerDropsSlowSubscribers(t *testing.T) {
    b := NewBroker()
    ch := b.Subscribe("o2")
    // fill the buffer past capacity; publish must not block
    for i := 0; i < 20; i++ {
        b.Publish("o2", SSEEvent{Type: "driver.location", Data: map[string]any{"i": i}})
    }
    if len(ch) == 0 { t.Fatal("expected buffered events") }
    b.Unsubscribe("o2", ch)
}

// Unsubscribe must tear down the PubSub and let the pump goroutine close the
// event channel exactly once; it must never close the channel itself while the
// pump can still send. No server needed, only the teardown path is exercised.
func TestRedisBrokerUnsubscribeClosesPumpSide(t *testing.T) {
    b := &RedisBroker{
        rdb:  redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"}),
        subs: map[chan SSEEvent]*redis.PubSub{},
    }
    ch := b.Subscribe("o3")
    b.Unsubscribe("o3", ch)
    select {
    case _, ok := <-ch:
        if ok { t.Fatal("expected closed channel, got an event") }
    case <-time.After(2 * time.Second):
        t.Fatal("pump did not close the channel after unsubscribe")
    }
    // A second unsubscribe for the same channel is a no-op, not a panic.
    b.Unsubscribe("o3", ch)
}
