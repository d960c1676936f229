package pipeline

import (
	"encoding/hex"
	"errors"

	log "github.com/sirupsen/logrus"

	"ubxmon/internal/observability"
	"ubxmon/internal/ubx"
)

// Dispatcher routes each decoded message to the handler registered for
// its identity and echoes the frame to the console sink. Collaborators
// are injected; the dispatcher owns the config and navigation state.
//
// Process must not be called concurrently: frames are handed over
// strictly in arrival order and each call completes before the next.
type Dispatcher struct {
	cfg      *ConfigStore
	nav      *NavState
	sink     PresentationSink
	settings SettingsProvider
}

func NewDispatcher(sink PresentationSink, settings SettingsProvider) *Dispatcher {
	return &Dispatcher{
		cfg:      NewConfigStore(),
		nav:      NewNavState(),
		sink:     sink,
		settings: settings,
	}
}

// Config exposes the config state store for snapshot readers.
func (d *Dispatcher) Config() *ConfigStore { return d.cfg }

// Nav exposes the navigation state for snapshot readers.
func (d *Dispatcher) Nav() *NavState { return d.nav }

// Process decodes one raw frame and applies it.
//
// A framing failure drops the frame: no handler runs, no state moves,
// no console echo, and the error is returned. A field-extraction
// failure inside a handler is suppressed here at the handler boundary:
// prior state is retained, a warning is logged, and the frame is still
// echoed. Identities without a handler pass through to the console
// untouched.
func (d *Dispatcher) Process(raw []byte) (ubx.Message, error) {
	msg, err := ubx.Parse(raw, false)
	if err != nil {
		observability.FramingErrors.Inc()
		return ubx.Message{}, err
	}
	observability.FramesDecoded.WithLabelValues(string(msg.Identity)).Inc()

	var herr error
	switch msg.Identity {
	case ubx.CFGMSG:
		herr = d.handleCfgMsg(msg)
	case ubx.CFGINF:
		herr = d.handleCfgInf(msg)
	case ubx.CFGPRT:
		herr = d.handleCfgPrt(msg)
	case ubx.NAVPOSLLH:
		herr = d.handlePosLLH(msg)
	case ubx.NAVPVT:
		herr = d.handlePVT(msg)
	case ubx.NAVVELNED:
		herr = d.handleVelNED(msg)
	case ubx.NAVSVINFO:
		herr = d.handleSVInfo(msg)
	case ubx.NAVSOL:
		herr = d.handleSol(msg)
	case ubx.NAVDOP:
		herr = d.handleDOP(msg)
	}
	if herr != nil {
		observability.FieldErrors.WithLabelValues(string(msg.Identity)).Inc()
		var fe *ubx.FieldError
		if !errors.As(herr, &fe) {
			// Handlers only produce field errors today; anything else
			// still must not escape the handler boundary.
			log.Warnf("%s handler: unexpected error kind: %v", msg.Identity, herr)
		} else {
			log.Warnf("%s dropped: %v", msg.Identity, herr)
		}
	}

	d.echoConsole(raw, msg)
	return msg, nil
}

// echoConsole forwards the frame to the console contract. The display
// mode flag comes from the settings collaborator on every update.
func (d *Dispatcher) echoConsole(raw []byte, msg ubx.Message) {
	if d.settings.GetSettings().RawDisplay {
		d.sink.UpdateConsole(hex.EncodeToString(raw))
		return
	}
	d.sink.UpdateConsole(msg.String())
}
