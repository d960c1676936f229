package web

import (
	"sync"
	"testing"

	"ubxmon/internal/pipeline"
)

func recvOrFail(t *testing.T, ch <-chan Update) Update {
	t.Helper()
	select {
	case u := <-ch:
		return u
	default:
		t.Fatalf("expected a buffered update")
		return Update{}
	}
}

func TestBroadcasterFanout(t *testing.T) {
	b := NewUpdateBroadcaster()
	id1, ch1 := b.Subscribe(8)
	defer b.Unsubscribe(id1)
	id2, ch2 := b.Subscribe(8)
	defer b.Unsubscribe(id2)

	b.UpdateConsole("NAV-POSLLH")

	for i, ch := range []<-chan Update{ch1, ch2} {
		u := recvOrFail(t, ch)
		if u.Kind != "console" || u.Console != "NAV-POSLLH" {
			t.Fatalf("subscriber %d: got kind=%q console=%q", i, u.Kind, u.Console)
		}
		if u.At == "" {
			t.Fatalf("subscriber %d: missing timestamp", i)
		}
	}
}

func TestBroadcasterReplaysLatestPerKind(t *testing.T) {
	b := NewUpdateBroadcaster()

	b.UpdateConsole("first")
	b.UpdateConsole("second")
	b.UpdateMap(47.33, 8.57, 2.5, 3.5, "3D", true)

	id, ch := b.Subscribe(8)
	defer b.Unsubscribe(id)

	got := map[string]Update{}
	for i := 0; i < 2; i++ {
		u := recvOrFail(t, ch)
		got[u.Kind] = u
	}
	if u, ok := got["console"]; !ok || u.Console != "second" {
		t.Fatalf("console replay: got %+v", got["console"])
	}
	if u, ok := got["map"]; !ok || u.Map == nil || u.Map.Lat != 47.33 || !u.Map.Centered {
		t.Fatalf("map replay: got %+v", got["map"])
	}
	select {
	case u := <-ch:
		t.Fatalf("unexpected extra replay update %+v", u)
	default:
	}
}

func TestBroadcasterDropsWhenSubscriberFull(t *testing.T) {
	b := NewUpdateBroadcaster()
	id, ch := b.Subscribe(1)
	defer b.Unsubscribe(id)

	// Must not block even though the buffer holds a single update.
	b.UpdateConsole("one")
	b.UpdateConsole("two")
	b.UpdateConsole("three")

	u := recvOrFail(t, ch)
	if u.Console != "one" {
		t.Fatalf("got %q, want the first buffered update", u.Console)
	}
	select {
	case u := <-ch:
		t.Fatalf("unexpected queued update %q", u.Console)
	default:
	}
}

func TestBroadcasterUnsubscribeStopsDelivery(t *testing.T) {
	b := NewUpdateBroadcaster()
	id, ch := b.Subscribe(8)
	b.Unsubscribe(id)

	// Publishing after unsubscribe must not panic, block, or deliver.
	b.UpdateBanner(pipeline.BannerFields{})

	select {
	case u := <-ch:
		t.Fatalf("update %+v delivered after unsubscribe", u)
	default:
	}
}

func TestBroadcasterPublishDuringSubscriberChurn(t *testing.T) {
	b := NewUpdateBroadcaster()

	var wg sync.WaitGroup
	stop := make(chan struct{})

	// Subscribers come and go while updates flow, the shape of browser
	// tabs opening and closing against a live receiver.
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				id, ch := b.Subscribe(1)
				select {
				case <-ch:
				default:
				}
				b.Unsubscribe(id)
			}
		}()
	}

	for i := 0; i < 1000; i++ {
		b.UpdateConsole("NAV-PVT")
	}

	close(stop)
	wg.Wait()
}
