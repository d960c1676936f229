package web

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"ubxmon/internal/pipeline"
	"ubxmon/internal/transport"
)

// TransportStatus reports the serial link state for /api/status.
type TransportStatus interface {
	Snapshot() transport.Snapshot
}

// Status gathers the pieces /api/status reports on.
type Status struct {
	Nav    *pipeline.NavState
	Config *pipeline.ConfigStore
	Link   TransportStatus
}

type statusPayload struct {
	Time   string                          `json:"time"`
	Nav    pipeline.NavSnapshot            `json:"nav"`
	Config map[string]pipeline.ConfigEntry `json:"config"`
	Link   *transport.Snapshot             `json:"link,omitempty"`
}

func (s *Status) snapshot(now time.Time) statusPayload {
	p := statusPayload{Time: now.Format(time.RFC3339)}
	if s.Nav != nil {
		p.Nav = s.Nav.Snapshot()
	}
	if s.Config != nil {
		p.Config = s.Config.Snapshot()
	}
	if s.Link != nil {
		snap := s.Link.Snapshot()
		p.Link = &snap
	}
	return p
}

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The UI is served from the same host; no cross-origin use.
	CheckOrigin: func(r *http.Request) bool { return true },
}

const wsWriteTimeout = 5 * time.Second

// Handler builds the full HTTP surface: websocket update stream, status
// and settings endpoints, and Prometheus metrics.
func Handler(status *Status, settings SettingsStore, updates *UpdateBroadcaster) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/status", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, status.snapshot(time.Now().UTC()))
	})

	mux.HandleFunc("/api/settings", settings.handleSettings)

	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		if updates == nil {
			http.Error(w, "updates unavailable", http.StatusNotFound)
			return
		}
		conn, err := wsUpgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warnf("web: websocket upgrade: %v", err)
			return
		}
		serveUpdates(conn, updates)
	})

	mux.Handle("/metrics", promhttp.Handler())

	return mux
}

// Serve runs the HTTP server until ctx is done.
func Serve(ctx context.Context, listenAddr string, status *Status, settings SettingsStore, updates *UpdateBroadcaster) error {
	if status == nil {
		status = &Status{}
	}

	srv := &http.Server{
		Addr:              listenAddr,
		Handler:           Handler(status, settings, updates),
		ReadHeaderTimeout: 5 * time.Second,
		// No read/write timeouts: /ws connections stay open for the
		// life of the client.
		IdleTimeout:    30 * time.Second,
		MaxHeaderBytes: 1 << 20, // 1 MiB
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

// serveUpdates pumps broadcaster updates to one websocket client until
// the client goes away or a write fails.
func serveUpdates(conn *websocket.Conn, updates *UpdateBroadcaster) {
	id, ch := updates.Subscribe(64)
	defer updates.Unsubscribe(id)
	defer conn.Close()

	// Drain client frames so close/ping handling works; the stream is
	// one-way otherwise.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case u := <-ch:
			b, err := json.Marshal(u)
			if err != nil {
				log.Warnf("web: marshal update: %v", err)
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
				return
			}
		}
	}
}
