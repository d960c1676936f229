// Package mqtt republishes presentation updates to an MQTT broker so
// other consumers (dashboards, loggers) can follow the receiver state.
package mqtt

import (
	"encoding/json"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"

	"ubxmon/internal/config"
	"ubxmon/internal/pipeline"
)

const connectTimeout = 10 * time.Second

// publisher is the slice of paho.Client the sink needs.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
}

// Sink publishes banner, map and satellite updates as retained QoS-0
// JSON. Retained so a subscriber joining late sees the current state
// immediately. Console lines are published unretained: they are a
// stream, not a state.
type Sink struct {
	client publisher
	prefix string

	// closer is the full client when Connect built one.
	closer paho.Client
}

type mapPayload struct {
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
	HAcc     float64 `json:"hacc"`
	VAcc     float64 `json:"vacc"`
	Mode     string  `json:"mode"`
	Centered bool    `json:"centered"`
}

type satellitesPayload struct {
	Count      int                        `json:"count"`
	Satellites []pipeline.SatelliteRecord `json:"satellites"`
}

// Connect dials the broker and returns a ready sink.
func Connect(cfg config.MQTTConfig) (*Sink, error) {
	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetConnectTimeout(connectTimeout).
		SetAutoReconnect(true)

	client := paho.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", cfg.Broker, token.Error())
	}
	log.Infof("mqtt: connected to %s as %s", cfg.Broker, cfg.ClientID)

	return &Sink{client: client, prefix: cfg.TopicPrefix, closer: client}, nil
}

func (s *Sink) Close() {
	if s.closer != nil {
		s.closer.Disconnect(250)
	}
}

func (s *Sink) topic(leaf string) string {
	return s.prefix + "/" + leaf
}

// publish marshals v and fires a QoS-0 publish without waiting for the
// token: the decode path must never block on the broker.
func (s *Sink) publish(leaf string, retained bool, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Warnf("mqtt: marshal %s: %v", leaf, err)
		return
	}
	s.client.Publish(s.topic(leaf), 0, retained, b)
}

func (s *Sink) UpdateConsole(text string) {
	s.publish("console", false, struct {
		Text string `json:"text"`
	}{Text: text})
}

func (s *Sink) UpdateBanner(f pipeline.BannerFields) {
	s.publish("banner", true, f)
}

func (s *Sink) UpdateMap(latDeg, lonDeg, hAccM, vAccM float64, mode string, centered bool) {
	s.publish("map", true, mapPayload{
		Lat: latDeg, Lon: lonDeg, HAcc: hAccM, VAcc: vAccM, Mode: mode, Centered: centered,
	})
}

func (s *Sink) UpdateSatellites(sats []pipeline.SatelliteRecord) {
	s.publish("satellites", true, satellitesPayload{Count: len(sats), Satellites: sats})
}

func (s *Sink) UpdateGraph(sats []pipeline.SatelliteRecord, count int) {
	s.publish("graph", true, satellitesPayload{Count: count, Satellites: sats})
}
