package ubx

import (
	"fmt"
	"time"
)

// Identity names a message the monitor knows about. The set is closed:
// Parse only ever yields one of the registered identities or
// IdentityUnknown.
type Identity string

const (
	IdentityUnknown Identity = "UNKNOWN"

	ACKACK Identity = "ACK-ACK"
	ACKNAK Identity = "ACK-NAK"

	CFGINF Identity = "CFG-INF"
	CFGMSG Identity = "CFG-MSG"
	CFGPRT Identity = "CFG-PRT"
	CFGUSB Identity = "CFG-USB"

	NAVCLOCK   Identity = "NAV-CLOCK"
	NAVDGPS    Identity = "NAV-DGPS"
	NAVDOP     Identity = "NAV-DOP"
	NAVPOSECEF Identity = "NAV-POSECEF"
	NAVPOSLLH  Identity = "NAV-POSLLH"
	NAVPVT     Identity = "NAV-PVT"
	NAVSBAS    Identity = "NAV-SBAS"
	NAVSOL     Identity = "NAV-SOL"
	NAVSTATUS  Identity = "NAV-STATUS"
	NAVSVINFO  Identity = "NAV-SVINFO"
	NAVTIMEGPS Identity = "NAV-TIMEGPS"
	NAVTIMEUTC Identity = "NAV-TIMEUTC"
	NAVVELECEF Identity = "NAV-VELECEF"
	NAVVELNED  Identity = "NAV-VELNED"
)

const (
	classNAV = 0x01
	classACK = 0x05
	classCFG = 0x06
	// Rate-configurable NMEA output messages live under these pseudo
	// classes in CFG-MSG requests.
	classNMEAStd  = 0xF0
	classNMEAProp = 0xF1
)

const (
	idCFGPRT = 0x00
	idCFGMSG = 0x01
	idCFGINF = 0x02
	idCFGUSB = 0x1B
)

// CatalogEntry is one known class/id pair.
type CatalogEntry struct {
	Class    byte
	ID       byte
	Identity Identity
}

// configMessages enumerates every message whose output rate can be set
// or polled through CFG-MSG, in the order the poll sweep emits them.
// Order matters only for reproducibility; the set must stay exhaustive.
var configMessages = []CatalogEntry{
	{classNMEAStd, 0x0A, "DTM"},
	{classNMEAStd, 0x09, "GBS"},
	{classNMEAStd, 0x00, "GGA"},
	{classNMEAStd, 0x01, "GLL"},
	{classNMEAStd, 0x40, "GPQ"},
	{classNMEAStd, 0x06, "GRS"},
	{classNMEAStd, 0x02, "GSA"},
	{classNMEAStd, 0x07, "GST"},
	{classNMEAStd, 0x03, "GSV"},
	{classNMEAStd, 0x04, "RMC"},
	{classNMEAStd, 0x41, "TXT"},
	{classNMEAStd, 0x0F, "VLW"},
	{classNMEAStd, 0x05, "VTG"},
	{classNMEAStd, 0x08, "ZDA"},
	{classNMEAProp, 0x00, "UBX-00"},
	{classNMEAProp, 0x03, "UBX-03"},
	{classNMEAProp, 0x04, "UBX-04"},
	{classNAV, 0x22, NAVCLOCK},
	{classNAV, 0x31, NAVDGPS},
	{classNAV, 0x04, NAVDOP},
	{classNAV, 0x01, NAVPOSECEF},
	{classNAV, 0x02, NAVPOSLLH},
	{classNAV, 0x07, NAVPVT},
	{classNAV, 0x32, NAVSBAS},
	{classNAV, 0x06, NAVSOL},
	{classNAV, 0x03, NAVSTATUS},
	{classNAV, 0x30, NAVSVINFO},
	{classNAV, 0x20, NAVTIMEGPS},
	{classNAV, 0x21, NAVTIMEUTC},
	{classNAV, 0x11, NAVVELECEF},
	{classNAV, 0x12, NAVVELNED},
}

// ConfigMessages returns the rate-configurable message catalog in poll
// order. The slice is a copy; callers may not mutate the catalog.
func ConfigMessages() []CatalogEntry {
	out := make([]CatalogEntry, len(configMessages))
	copy(out, configMessages)
	return out
}

var identityByKey = buildIdentityIndex()

func buildIdentityIndex() map[[2]byte]Identity {
	idx := map[[2]byte]Identity{
		{classACK, 0x01}: ACKACK,
		{classACK, 0x00}: ACKNAK,
		{classCFG, idCFGPRT}: CFGPRT,
		{classCFG, idCFGMSG}: CFGMSG,
		{classCFG, idCFGINF}: CFGINF,
		{classCFG, idCFGUSB}: CFGUSB,
	}
	for _, e := range configMessages {
		idx[[2]byte{e.Class, e.ID}] = e.Identity
	}
	return idx
}

// IdentityOf resolves a class/id pair against the registered set.
func IdentityOf(class, id byte) (Identity, bool) {
	identity, ok := identityByKey[[2]byte{class, id}]
	return identity, ok
}

// fixLabels follows the gpsFix/fixType table of the u-blox interface
// description.
var fixLabels = map[uint8]string{
	0: "NO FIX",
	1: "DR",
	2: "2D",
	3: "3D",
	4: "GPS+DR",
	5: "TIME ONLY",
}

// FixLabel maps a fix-type code to its display string. Codes outside
// the table read as NO FIX.
func FixLabel(code uint8) string {
	if s, ok := fixLabels[code]; ok {
		return s
	}
	return "NO FIX"
}

// gpsLeapSeconds is the current GPS-UTC offset.
const gpsLeapSeconds = 18

// ITOWToUTC converts a GPS time-of-week in milliseconds to a UTC
// wall-clock string (hh:mm:ss).
func ITOWToUTC(itowMS uint32) string {
	const day = 24 * 60 * 60
	secs := (int64(itowMS)/1000 - gpsLeapSeconds) % day
	if secs < 0 {
		secs += day
	}
	t := time.Unix(secs, 0).UTC()
	return fmt.Sprintf("%02d:%02d:%02d", t.Hour(), t.Minute(), t.Second())
}
