package mqtt

import (
	"encoding/json"
	"testing"

	paho "github.com/eclipse/paho.mqtt.golang"

	"ubxmon/internal/pipeline"
)

type published struct {
	topic    string
	retained bool
	payload  []byte
}

type fakePublisher struct {
	msgs []published
}

func (f *fakePublisher) Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token {
	f.msgs = append(f.msgs, published{topic: topic, retained: retained, payload: payload.([]byte)})
	return &paho.DummyToken{}
}

func newTestSink() (*Sink, *fakePublisher) {
	pub := &fakePublisher{}
	return &Sink{client: pub, prefix: "gps/rover1"}, pub
}

func TestSinkTopicsAndRetention(t *testing.T) {
	s, pub := newTestSink()

	s.UpdateConsole("NAV-PVT")
	s.UpdateBanner(pipeline.BannerFields{})
	s.UpdateMap(47.33, 8.57, 2.5, 3.5, "3D", true)
	s.UpdateSatellites(nil)
	s.UpdateGraph(nil, 0)

	want := []struct {
		topic    string
		retained bool
	}{
		{"gps/rover1/console", false},
		{"gps/rover1/banner", true},
		{"gps/rover1/map", true},
		{"gps/rover1/satellites", true},
		{"gps/rover1/graph", true},
	}
	if len(pub.msgs) != len(want) {
		t.Fatalf("published %d messages, want %d", len(pub.msgs), len(want))
	}
	for i, w := range want {
		if pub.msgs[i].topic != w.topic {
			t.Fatalf("msg %d: topic %q, want %q", i, pub.msgs[i].topic, w.topic)
		}
		if pub.msgs[i].retained != w.retained {
			t.Fatalf("msg %d (%s): retained=%v, want %v", i, w.topic, pub.msgs[i].retained, w.retained)
		}
	}
}

func TestSinkMapPayload(t *testing.T) {
	s, pub := newTestSink()

	s.UpdateMap(47.3397625, 8.5765432, 2.346, 3.318, "3D", false)

	if len(pub.msgs) != 1 {
		t.Fatalf("published %d messages, want 1", len(pub.msgs))
	}
	var got mapPayload
	if err := json.Unmarshal(pub.msgs[0].payload, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	want := mapPayload{Lat: 47.3397625, Lon: 8.5765432, HAcc: 2.346, VAcc: 3.318, Mode: "3D", Centered: false}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestSinkSatellitesPayload(t *testing.T) {
	s, pub := newTestSink()

	sats := []pipeline.SatelliteRecord{
		{SVID: 5, ElevDeg: 44, AzimDeg: 181, CNODBHz: 38},
		{SVID: 12, ElevDeg: 12, AzimDeg: 305, CNODBHz: 21},
	}
	s.UpdateSatellites(sats)

	var got satellitesPayload
	if err := json.Unmarshal(pub.msgs[0].payload, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Count != 2 || len(got.Satellites) != 2 {
		t.Fatalf("got count=%d len=%d, want 2/2", got.Count, len(got.Satellites))
	}
	if got.Satellites[1] != sats[1] {
		t.Fatalf("satellite record: got %+v, want %+v", got.Satellites[1], sats[1])
	}
}

func TestSinkBannerOmitsUnsetFields(t *testing.T) {
	s, pub := newTestSink()

	lat := 47.3397625
	s.UpdateBanner(pipeline.BannerFields{Lat: &lat})

	var got map[string]any
	if err := json.Unmarshal(pub.msgs[0].payload, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := got["lat"]; !ok {
		t.Fatalf("lat missing from %s", pub.msgs[0].payload)
	}
	if _, ok := got["siv"]; ok {
		t.Fatalf("unset siv serialized in %s", pub.msgs[0].payload)
	}
}
