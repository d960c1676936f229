package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"ubxmon/internal/config"
	"ubxmon/internal/pipeline"
)

// SettingsHolder is the live, mutable copy of the display settings. The
// pipeline reads it per update; the settings endpoint writes it.
type SettingsHolder struct {
	mu sync.RWMutex
	s  pipeline.Settings
}

func NewSettingsHolder(s pipeline.Settings) *SettingsHolder {
	return &SettingsHolder{s: s}
}

func (h *SettingsHolder) GetSettings() pipeline.Settings {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.s
}

func (h *SettingsHolder) Set(s pipeline.Settings) {
	h.mu.Lock()
	h.s = s
	h.mu.Unlock()
}

// SettingsPayloadIn is the strict POST schema.
//
// All fields are required (no partial updates) to avoid hidden defaults and
// prevent accidental schema drift.
type SettingsPayloadIn struct {
	RawDisplay    *bool `json:"raw_display"`
	WebmapEnabled *bool `json:"webmap_enabled"`
}

var settingsPostKeys = []string{
	"raw_display",
	"webmap_enabled",
}

func decodeSettingsPayloadInStrict(body []byte) (SettingsPayloadIn, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()

	// First pass: stream tokens to enforce strict object rules and detect duplicate keys.
	allowed := make(map[string]struct{}, len(settingsPostKeys))
	for _, k := range settingsPostKeys {
		allowed[k] = struct{}{}
	}
	seen := make(map[string]struct{}, len(settingsPostKeys))

	tok, err := dec.Token()
	if err != nil {
		return SettingsPayloadIn{}, fmt.Errorf("invalid json: %w", err)
	}
	delim, ok := tok.(json.Delim)
	if !ok || delim != '{' {
		return SettingsPayloadIn{}, errors.New("invalid json: expected object")
	}

	for dec.More() {
		kt, err := dec.Token()
		if err != nil {
			return SettingsPayloadIn{}, fmt.Errorf("invalid json: %w", err)
		}
		key, ok := kt.(string)
		if !ok {
			return SettingsPayloadIn{}, errors.New("invalid json: expected string key")
		}
		if _, ok := allowed[key]; !ok {
			return SettingsPayloadIn{}, fmt.Errorf("invalid json: unknown key %q", key)
		}
		if _, dup := seen[key]; dup {
			return SettingsPayloadIn{}, fmt.Errorf("invalid json: duplicate key %q", key)
		}
		seen[key] = struct{}{}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return SettingsPayloadIn{}, fmt.Errorf("invalid json: %w", err)
		}
		if strings.TrimSpace(string(raw)) == "null" {
			return SettingsPayloadIn{}, fmt.Errorf("invalid json: %q cannot be null", key)
		}
	}

	end, err := dec.Token()
	if err != nil {
		return SettingsPayloadIn{}, fmt.Errorf("invalid json: %w", err)
	}
	delim, ok = end.(json.Delim)
	if !ok || delim != '}' {
		return SettingsPayloadIn{}, errors.New("invalid json: expected end of object")
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return SettingsPayloadIn{}, errors.New("invalid json: trailing data")
	}

	for _, k := range settingsPostKeys {
		if _, ok := seen[k]; !ok {
			return SettingsPayloadIn{}, fmt.Errorf("invalid json: missing required key %q", k)
		}
	}

	// Second pass: decode into the typed struct.
	var out SettingsPayloadIn
	dec2 := json.NewDecoder(bytes.NewReader(body))
	dec2.DisallowUnknownFields()
	if err := dec2.Decode(&out); err != nil {
		return SettingsPayloadIn{}, fmt.Errorf("invalid json: %w", err)
	}
	if err := dec2.Decode(&struct{}{}); err != io.EOF {
		return SettingsPayloadIn{}, errors.New("invalid json: trailing data")
	}

	return out, nil
}

func applySettingsPayload(cfg *config.Config, p SettingsPayloadIn) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	if p.RawDisplay == nil {
		return errors.New("raw_display is required")
	}
	if p.WebmapEnabled == nil {
		return errors.New("webmap_enabled is required")
	}
	cfg.Display.RawDisplay = *p.RawDisplay
	cfg.Display.WebmapEnabled = *p.WebmapEnabled
	return nil
}

type SettingsStore struct {
	ConfigPath string
	// Holder, when set, is updated after validation and before saving
	// so the new settings take effect immediately.
	Holder *SettingsHolder
}

func (s SettingsStore) load() (config.Config, error) {
	return config.Load(s.ConfigPath)
}

func (s SettingsStore) save(cfg config.Config) error {
	if err := config.DefaultAndValidate(&cfg); err != nil {
		return err
	}
	b, err := yaml.Marshal(&cfg)
	if err != nil {
		return err
	}

	// Write atomically to avoid corrupting config on crash/power loss.
	// Use a temp file in the same directory so os.Rename is atomic.
	dir := filepath.Dir(s.ConfigPath)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.ConfigPath)+".tmp.*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = os.Remove(tmpPath)
	}()
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o644); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, s.ConfigPath)
}

func (s SettingsStore) handleSettings(w http.ResponseWriter, r *http.Request) {
	if strings.TrimSpace(s.ConfigPath) == "" {
		http.Error(w, "settings not available (no config path)", http.StatusNotImplemented)
		return
	}

	switch r.Method {
	case http.MethodGet:
		cfg, err := s.load()
		if err != nil {
			http.Error(w, fmt.Sprintf("load failed: %v", err), http.StatusInternalServerError)
			return
		}
		writeJSON(w, cfg.Display)
		return

	case http.MethodPost:
		if ct := strings.TrimSpace(r.Header.Get("Content-Type")); ct != "application/json" {
			http.Error(w, "content-type must be application/json", http.StatusUnsupportedMediaType)
			return
		}

		// Small config payload; cap to prevent unbounded reads.
		r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MiB
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, fmt.Sprintf("read failed: %v", err), http.StatusBadRequest)
			return
		}
		p, err := decodeSettingsPayloadInStrict(body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		oldCfg, err := s.load()
		if err != nil {
			http.Error(w, fmt.Sprintf("load failed: %v", err), http.StatusInternalServerError)
			return
		}

		cfg := oldCfg
		if err := applySettingsPayload(&cfg, p); err != nil {
			http.Error(w, fmt.Sprintf("invalid settings: %v", err), http.StatusBadRequest)
			return
		}
		if err := config.DefaultAndValidate(&cfg); err != nil {
			http.Error(w, fmt.Sprintf("invalid config: %v", err), http.StatusBadRequest)
			return
		}

		if s.Holder != nil {
			s.Holder.Set(cfg.Display)
		}

		if err := s.save(cfg); err != nil {
			// Best-effort rollback to keep runtime consistent with disk.
			if s.Holder != nil {
				s.Holder.Set(oldCfg.Display)
			}
			http.Error(w, fmt.Sprintf("save failed: %v", err), http.StatusInternalServerError)
			return
		}

		writeJSON(w, cfg.Display)
		return

	default:
		w.Header().Set("Allow", "GET, POST")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		http.Error(w, "marshal failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(b)
	_, _ = w.Write([]byte("\n"))
}
