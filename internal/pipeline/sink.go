// Package pipeline routes decoded UBX messages to configuration and
// navigation handlers and accumulates their state. One frame is fully
// processed before the next begins; all state updates happen on the
// caller's goroutine in arrival order.
package pipeline

// SatelliteRecord is one satellite from a NAV-SVINFO channel block.
type SatelliteRecord struct {
	SVID    int `json:"svid"`
	ElevDeg int `json:"elev_deg"`
	AzimDeg int `json:"azim_deg"`
	CNODBHz int `json:"cno_dbhz"`
}

// BannerFields carries the display-ready values one handler produced.
// Nil fields were not computed by that handler and must leave the
// consumer's previous value untouched.
type BannerFields struct {
	Time  *string  `json:"time,omitempty"`
	Lat   *float64 `json:"lat,omitempty"`
	Lon   *float64 `json:"lon,omitempty"`
	Alt   *float64 `json:"alt,omitempty"`
	HAcc  *float64 `json:"hacc,omitempty"`
	VAcc  *float64 `json:"vacc,omitempty"`
	DOP   *float64 `json:"dop,omitempty"`
	HDOP  *float64 `json:"hdop,omitempty"`
	VDOP  *float64 `json:"vdop,omitempty"`
	SIV   *int     `json:"siv,omitempty"`
	Speed *float64 `json:"speed,omitempty"`
	Fix   *string  `json:"fix,omitempty"`
	Track *float64 `json:"track,omitempty"`
}

// PresentationSink consumes derived values for display. Implementations
// decide how (or whether) to render; the pipeline never blocks on them.
type PresentationSink interface {
	UpdateConsole(text string)
	UpdateBanner(f BannerFields)
	UpdateMap(latDeg, lonDeg, hAccM, vAccM float64, mode string, centered bool)
	UpdateSatellites(sats []SatelliteRecord)
	UpdateGraph(sats []SatelliteRecord, count int)
}

// Settings are the display preferences consulted per update.
type Settings struct {
	RawDisplay    bool `json:"raw_display" yaml:"raw_display"`
	WebmapEnabled bool `json:"webmap_enabled" yaml:"webmap_enabled"`
}

// SettingsProvider is the read-only settings collaborator.
type SettingsProvider interface {
	GetSettings() Settings
}

// SettingsFunc adapts a function to SettingsProvider.
type SettingsFunc func() Settings

func (f SettingsFunc) GetSettings() Settings { return f() }

// MultiSink fans one update out to several sinks in order.
type MultiSink []PresentationSink

func (m MultiSink) UpdateConsole(text string) {
	for _, s := range m {
		s.UpdateConsole(text)
	}
}

func (m MultiSink) UpdateBanner(f BannerFields) {
	for _, s := range m {
		s.UpdateBanner(f)
	}
}

func (m MultiSink) UpdateMap(latDeg, lonDeg, hAccM, vAccM float64, mode string, centered bool) {
	for _, s := range m {
		s.UpdateMap(latDeg, lonDeg, hAccM, vAccM, mode, centered)
	}
}

func (m MultiSink) UpdateSatellites(sats []SatelliteRecord) {
	for _, s := range m {
		s.UpdateSatellites(sats)
	}
}

func (m MultiSink) UpdateGraph(sats []SatelliteRecord, count int) {
	for _, s := range m {
		s.UpdateGraph(sats, count)
	}
}
