package pipeline

import (
	"fmt"
	"sync"

	"ubxmon/internal/ubx"
)

// NavSnapshot is the last-known-good navigation record. A field changes
// only when its source message decodes successfully.
type NavSnapshot struct {
	Time  string  `json:"time"`
	Lat   float64 `json:"lat"`
	Lon   float64 `json:"lon"`
	Alt   float64 `json:"alt"`
	HAcc  float64 `json:"hacc"`
	VAcc  float64 `json:"vacc"`
	PDOP  float64 `json:"pdop"`
	HDOP  float64 `json:"hdop"`
	VDOP  float64 `json:"vdop"`
	Speed float64 `json:"speed"`
	Track float64 `json:"track"`
	Fix   string  `json:"fix"`
	SIV   int     `json:"siv"`

	Satellites []SatelliteRecord `json:"satellites,omitempty"`
}

// NavState holds the latest derived fix values. Writes come only from
// the dispatching goroutine; the mutex exists for snapshot readers.
type NavState struct {
	mu sync.RWMutex
	s  NavSnapshot
}

func NewNavState() *NavState {
	return &NavState{s: NavSnapshot{Fix: "-"}}
}

// Snapshot returns a copy of the current record. The satellite list is
// copied so callers can hold it across further updates.
func (n *NavState) Snapshot() NavSnapshot {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := n.s
	if len(n.s.Satellites) > 0 {
		out.Satellites = make([]SatelliteRecord, len(n.s.Satellites))
		copy(out.Satellites, n.s.Satellites)
	}
	return out
}

func (n *NavState) update(fn func(*NavSnapshot)) {
	n.mu.Lock()
	fn(&n.s)
	n.mu.Unlock()
}

// handlePosLLH derives position and accuracy from NAV-POSLLH.
func (d *Dispatcher) handlePosLLH(m ubx.Message) error {
	p := m.Payload
	itow, err := p.U4(0)
	if err != nil {
		return fmt.Errorf("iTOW: %w", err)
	}
	lonRaw, err := p.I4(4)
	if err != nil {
		return fmt.Errorf("lon: %w", err)
	}
	latRaw, err := p.I4(8)
	if err != nil {
		return fmt.Errorf("lat: %w", err)
	}
	hMSL, err := p.I4(16)
	if err != nil {
		return fmt.Errorf("hMSL: %w", err)
	}
	hAccRaw, err := p.U4(20)
	if err != nil {
		return fmt.Errorf("hAcc: %w", err)
	}
	vAccRaw, err := p.U4(24)
	if err != nil {
		return fmt.Errorf("vAcc: %w", err)
	}

	utc := ubx.ITOWToUTC(itow)
	lat := float64(latRaw) / 1e7
	lon := float64(lonRaw) / 1e7
	alt := float64(hMSL) / 1000
	hAcc := float64(hAccRaw) / 1000
	vAcc := float64(vAccRaw) / 1000

	d.nav.update(func(s *NavSnapshot) {
		s.Time = utc
		s.Lat = lat
		s.Lon = lon
		s.Alt = alt
		s.HAcc = hAcc
		s.VAcc = vAcc
	})

	d.sink.UpdateBanner(BannerFields{
		Time: &utc,
		Lat:  &lat,
		Lon:  &lon,
		Alt:  &alt,
		HAcc: &hAcc,
		VAcc: &vAcc,
	})
	d.forwardMap(lat, lon, hAcc, vAcc)
	return nil
}

// handlePVT derives the combined position/velocity/time solution from
// NAV-PVT.
func (d *Dispatcher) handlePVT(m ubx.Message) error {
	p := m.Payload
	itow, err := p.U4(0)
	if err != nil {
		return fmt.Errorf("iTOW: %w", err)
	}
	fixType, err := p.U1(20)
	if err != nil {
		return fmt.Errorf("fixType: %w", err)
	}
	numSV, err := p.U1(23)
	if err != nil {
		return fmt.Errorf("numSV: %w", err)
	}
	lonRaw, err := p.I4(24)
	if err != nil {
		return fmt.Errorf("lon: %w", err)
	}
	latRaw, err := p.I4(28)
	if err != nil {
		return fmt.Errorf("lat: %w", err)
	}
	hMSL, err := p.I4(36)
	if err != nil {
		return fmt.Errorf("hMSL: %w", err)
	}
	hAccRaw, err := p.U4(40)
	if err != nil {
		return fmt.Errorf("hAcc: %w", err)
	}
	vAccRaw, err := p.U4(44)
	if err != nil {
		return fmt.Errorf("vAcc: %w", err)
	}
	gSpeed, err := p.I4(60)
	if err != nil {
		return fmt.Errorf("gSpeed: %w", err)
	}
	headMot, err := p.I4(64)
	if err != nil {
		return fmt.Errorf("headMot: %w", err)
	}
	pDOPRaw, err := p.U2(76)
	if err != nil {
		return fmt.Errorf("pDOP: %w", err)
	}

	utc := ubx.ITOWToUTC(itow)
	lat := float64(latRaw) / 1e7
	lon := float64(lonRaw) / 1e7
	alt := float64(hMSL) / 1000
	hAcc := float64(hAccRaw) / 1000
	vAcc := float64(vAccRaw) / 1000
	// PVT reports DOP unscaled here, unlike NAV-SOL/NAV-DOP which carry
	// centi-units. Kept as-is to match the receiver handler this was
	// modeled on; see DESIGN.md before changing.
	pdop := float64(pDOPRaw)
	siv := int(numSV)
	speed := float64(gSpeed) / 100
	track := float64(headMot) / 1e5
	fix := ubx.FixLabel(fixType)

	d.nav.update(func(s *NavSnapshot) {
		s.Time = utc
		s.Lat = lat
		s.Lon = lon
		s.Alt = alt
		s.HAcc = hAcc
		s.VAcc = vAcc
		s.PDOP = pdop
		s.SIV = siv
		s.Speed = speed
		s.Track = track
		s.Fix = fix
	})

	d.sink.UpdateBanner(BannerFields{
		Time:  &utc,
		Lat:   &lat,
		Lon:   &lon,
		Alt:   &alt,
		HAcc:  &hAcc,
		VAcc:  &vAcc,
		DOP:   &pdop,
		SIV:   &siv,
		Speed: &speed,
		Fix:   &fix,
		Track: &track,
	})
	d.forwardMap(lat, lon, hAcc, vAcc)
	return nil
}

// handleVelNED derives ground speed and heading from NAV-VELNED.
func (d *Dispatcher) handleVelNED(m ubx.Message) error {
	p := m.Payload
	gSpeed, err := p.U4(20)
	if err != nil {
		return fmt.Errorf("gSpeed: %w", err)
	}
	heading, err := p.I4(24)
	if err != nil {
		return fmt.Errorf("heading: %w", err)
	}

	speed := float64(gSpeed) / 100
	track := float64(heading) / 1e5

	d.nav.update(func(s *NavSnapshot) {
		s.Speed = speed
		s.Track = track
	})

	d.sink.UpdateBanner(BannerFields{Speed: &speed, Track: &track})
	return nil
}

// handleSVInfo replaces the satellite list from NAV-SVINFO. The list
// length always equals the advertised channel count; a short payload
// fails the whole message and keeps the previous list.
func (d *Dispatcher) handleSVInfo(m ubx.Message) error {
	p := m.Payload
	numCh, err := p.U1(4)
	if err != nil {
		return fmt.Errorf("numCh: %w", err)
	}

	count := int(numCh)
	sats := make([]SatelliteRecord, 0, count)
	for i := 0; i < count; i++ {
		off := 8 + 12*i
		svid, err := p.U1(off + 1)
		if err != nil {
			return fmt.Errorf("svid[%d]: %w", i, err)
		}
		cno, err := p.U1(off + 4)
		if err != nil {
			return fmt.Errorf("cno[%d]: %w", i, err)
		}
		elev, err := p.I1(off + 5)
		if err != nil {
			return fmt.Errorf("elev[%d]: %w", i, err)
		}
		azim, err := p.I2(off + 6)
		if err != nil {
			return fmt.Errorf("azim[%d]: %w", i, err)
		}
		sats = append(sats, SatelliteRecord{
			SVID:    int(svid),
			ElevDeg: int(elev),
			AzimDeg: int(azim),
			CNODBHz: int(cno),
		})
	}

	d.nav.update(func(s *NavSnapshot) {
		s.SIV = count
		s.Satellites = sats
	})

	d.sink.UpdateBanner(BannerFields{SIV: &count})
	d.sink.UpdateSatellites(sats)
	d.sink.UpdateGraph(sats, count)
	return nil
}

// handleSol derives DOP, satellite count and fix type from NAV-SOL.
func (d *Dispatcher) handleSol(m ubx.Message) error {
	p := m.Payload
	gpsFix, err := p.U1(10)
	if err != nil {
		return fmt.Errorf("gpsFix: %w", err)
	}
	pDOPRaw, err := p.U2(44)
	if err != nil {
		return fmt.Errorf("pDOP: %w", err)
	}
	numSV, err := p.U1(47)
	if err != nil {
		return fmt.Errorf("numSV: %w", err)
	}

	pdop := float64(pDOPRaw) / 100
	siv := int(numSV)
	fix := ubx.FixLabel(gpsFix)

	d.nav.update(func(s *NavSnapshot) {
		s.PDOP = pdop
		s.SIV = siv
		s.Fix = fix
	})

	d.sink.UpdateBanner(BannerFields{DOP: &pdop, SIV: &siv, Fix: &fix})
	return nil
}

// handleDOP derives the dilution-of-precision variants from NAV-DOP.
func (d *Dispatcher) handleDOP(m ubx.Message) error {
	p := m.Payload
	pDOPRaw, err := p.U2(6)
	if err != nil {
		return fmt.Errorf("pDOP: %w", err)
	}
	vDOPRaw, err := p.U2(10)
	if err != nil {
		return fmt.Errorf("vDOP: %w", err)
	}
	hDOPRaw, err := p.U2(12)
	if err != nil {
		return fmt.Errorf("hDOP: %w", err)
	}

	pdop := float64(pDOPRaw) / 100
	vdop := float64(vDOPRaw) / 100
	hdop := float64(hDOPRaw) / 100

	d.nav.update(func(s *NavSnapshot) {
		s.PDOP = pdop
		s.VDOP = vdop
		s.HDOP = hdop
	})

	d.sink.UpdateBanner(BannerFields{DOP: &pdop, HDOP: &hdop, VDOP: &vdop})
	return nil
}

// forwardMap propagates position and accuracy to the map consumer. The
// webmap preference decides whether the view stays centered on the fix.
func (d *Dispatcher) forwardMap(lat, lon, hAcc, vAcc float64) {
	centered := !d.settings.GetSettings().WebmapEnabled
	d.sink.UpdateMap(lat, lon, hAcc, vAcc, "3D", centered)
}
