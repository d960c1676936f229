// Package web serves the browser UI surface: a websocket stream of
// presentation updates, status and settings endpoints, and metrics.
package web

import (
	"sync"
	"time"

	"ubxmon/internal/pipeline"
)

// Update is one presentation event on the wire. Kind selects which
// payload field is set.
type Update struct {
	Kind string `json:"kind"`
	At   string `json:"at"`

	Console    string                     `json:"console,omitempty"`
	Banner     *pipeline.BannerFields     `json:"banner,omitempty"`
	Map        *MapUpdate                 `json:"map,omitempty"`
	Satellites []pipeline.SatelliteRecord `json:"satellites,omitempty"`
	Count      int                        `json:"count,omitempty"`
}

type MapUpdate struct {
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
	HAcc     float64 `json:"hacc"`
	VAcc     float64 `json:"vacc"`
	Mode     string  `json:"mode"`
	Centered bool    `json:"centered"`
}

// UpdateBroadcaster fans presentation updates out to any listeners.
// It keeps the most recent update per kind so a new subscriber gets an
// immediate picture. It is the pipeline's PresentationSink.
type UpdateBroadcaster struct {
	mu     sync.RWMutex
	subs   map[int]chan Update
	nextID int
	last   map[string]Update
}

func NewUpdateBroadcaster() *UpdateBroadcaster {
	return &UpdateBroadcaster{
		subs: make(map[int]chan Update),
		last: make(map[string]Update),
	}
}

// Subscribe registers a listener. New subscribers immediately receive
// the latest update of each kind seen so far.
func (b *UpdateBroadcaster) Subscribe(buffer int) (int, <-chan Update) {
	if b == nil {
		return 0, nil
	}
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Update, buffer)
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	replay := make([]Update, 0, len(b.last))
	for _, u := range b.last {
		replay = append(replay, u)
	}
	b.mu.Unlock()
	for _, u := range replay {
		select {
		case ch <- u:
		default:
		}
	}
	return id, ch
}

// Unsubscribe stops delivery to id. The channel is deliberately never
// closed: publish sends outside the lock, so a close here could race a
// send in flight. Readers stop via their own lifecycle, not channel
// close.
func (b *UpdateBroadcaster) Unsubscribe(id int) {
	if b == nil {
		return
	}
	b.mu.Lock()
	delete(b.subs, id)
	b.mu.Unlock()
}

// publish never blocks: slow subscribers lose updates rather than
// stalling the decode path.
func (b *UpdateBroadcaster) publish(u Update) {
	if b == nil {
		return
	}
	u.At = time.Now().UTC().Format(time.RFC3339Nano)

	b.mu.Lock()
	b.last[u.Kind] = u
	subs := make([]chan Update, 0, len(b.subs))
	for _, ch := range b.subs {
		subs = append(subs, ch)
	}
	b.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- u:
		default:
		}
	}
}

func (b *UpdateBroadcaster) UpdateConsole(text string) {
	b.publish(Update{Kind: "console", Console: text})
}

func (b *UpdateBroadcaster) UpdateBanner(f pipeline.BannerFields) {
	b.publish(Update{Kind: "banner", Banner: &f})
}

func (b *UpdateBroadcaster) UpdateMap(lat, lon, hAcc, vAcc float64, mode string, centered bool) {
	b.publish(Update{Kind: "map", Map: &MapUpdate{
		Lat: lat, Lon: lon, HAcc: hAcc, VAcc: vAcc, Mode: mode, Centered: centered,
	}})
}

func (b *UpdateBroadcaster) UpdateSatellites(sats []pipeline.SatelliteRecord) {
	b.publish(Update{Kind: "satellites", Satellites: sats, Count: len(sats)})
}

func (b *UpdateBroadcaster) UpdateGraph(sats []pipeline.SatelliteRecord, count int) {
	b.publish(Update{Kind: "graph", Satellites: sats, Count: count})
}
