package events

import (
	"sync"
	"testing"
)

func TestPublishDelivers(t *testing.T) {
	b := NewBus()
	sub := b.Subscribe(EventNowPlaying)

	b.Publish(EventNowPlaying, Payload{"title": "x"})

	select {
	case got := <-sub:
		if got["title"] != "x" {
			t.Fatalf("unexpected payload: %v", got)
		}
	default:
		t.Fatal("no event delivered")
	}
}

func TestPublishDropsWhenBufferFull(t *testing.T) {
	b := NewBus()
	sub := b.Subscribe(EventPlaybackIdle)

	for i := 0; i < cap(sub)+5; i++ {
		b.Publish(EventPlaybackIdle, Payload{})
	}
	if len(sub) != cap(sub) {
		t.Fatalf("expected full buffer, got %d", len(sub))
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b := NewBus()
	sub := b.Subscribe(EventSessionStopped)
	b.Unsubscribe(EventSessionStopped, sub)

	if _, ok := <-sub; ok {
		t.Fatal("expected closed channel")
	}
	// A later publish must not hit the removed subscriber.
	b.Publish(EventSessionStopped, Payload{})
}

func TestConcurrentPublishAndUnsubscribe(t *testing.T) {
	b := NewBus()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		sub := b.Subscribe(EventPlaybackIdle)
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				b.Publish(EventPlaybackIdle, Payload{})
			}
		}()
		go func(s Subscriber) {
			defer wg.Done()
			b.Unsubscribe(EventPlaybackIdle, s)
		}(sub)
	}
	wg.Wait()
}
