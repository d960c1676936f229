package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"ubxmon/internal/config"
	"ubxmon/internal/mqtt"
	"ubxmon/internal/pipeline"
	"ubxmon/internal/transport"
	"ubxmon/internal/web"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "./ubxmon.yaml", "Path to YAML config")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	settings := web.NewSettingsHolder(cfg.Display)
	updates := web.NewUpdateBroadcaster()

	sinks := pipeline.MultiSink{updates}
	if cfg.MQTT.Enable {
		mqttSink, err := mqtt.Connect(cfg.MQTT)
		if err != nil {
			log.Fatalf("mqtt init failed: %v", err)
		}
		defer mqttSink.Close()
		sinks = append(sinks, mqttSink)
	}

	dispatcher := pipeline.NewDispatcher(sinks, settings)

	svc := transport.New(transport.Config{
		Device:      cfg.Serial.Device,
		Baud:        cfg.Serial.Baud,
		PollOnStart: cfg.Serial.PollOnStart,
		ReopenDelay: cfg.Serial.ReopenDelay,
	}, dispatcher)
	if err := svc.Start(ctx); err != nil {
		log.Fatalf("serial init failed: %v", err)
	}
	defer svc.Close()

	status := &web.Status{
		Nav:    dispatcher.Nav(),
		Config: dispatcher.Config(),
		Link:   svc,
	}
	store := web.SettingsStore{ConfigPath: configPath, Holder: settings}

	log.Infof("ubxmon starting")
	log.Infof("http listen=%s serial device=%q baud=%d", cfg.HTTP.Listen, cfg.Serial.Device, cfg.Serial.Baud)

	go func() {
		err := web.Serve(ctx, cfg.HTTP.Listen, status, store, updates)
		if err != nil && err != http.ErrServerClosed && ctx.Err() == nil {
			log.Errorf("web server stopped: %v", err)
			cancel()
		}
	}()

	<-ctx.Done()
	log.Infof("ubxmon stopping")
}
