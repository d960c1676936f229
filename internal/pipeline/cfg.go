package pipeline

import (
	"fmt"
	"sort"
	"sync"

	"ubxmon/internal/ubx"
)

// MessageRates are the six per-port output rates from a CFG-MSG
// response.
type MessageRates struct {
	DDC      uint8 `json:"ddc"`
	UART1    uint8 `json:"uart1"`
	UART2    uint8 `json:"uart2"`
	USB      uint8 `json:"usb"`
	SPI      uint8 `json:"spi"`
	Reserved uint8 `json:"reserved"`
}

// InfoMasks are the five per-port info-message bitmasks from a CFG-INF
// response.
type InfoMasks struct {
	DDC   uint8 `json:"ddc"`
	UART1 uint8 `json:"uart1"`
	UART2 uint8 `json:"uart2"`
	USB   uint8 `json:"usb"`
	SPI   uint8 `json:"spi"`
}

// PortConfig is the port setup from a CFG-PRT response.
type PortConfig struct {
	Mode         uint32 `json:"mode"`
	BaudRate     uint32 `json:"baud_rate"`
	InProtoMask  uint16 `json:"in_proto_mask"`
	OutProtoMask uint16 `json:"out_proto_mask"`
}

// ConfigEntry is the latest configuration tuple stored for one
// identity. Exactly one group is populated, matching the identity's
// shape; each update overwrites the entry wholesale.
type ConfigEntry struct {
	MsgRates  *MessageRates `json:"msg_rates,omitempty"`
	InfoMasks *InfoMasks    `json:"info_masks,omitempty"`
	Port      *PortConfig   `json:"port,omitempty"`
}

// ConfigStore maps configuration identities to their latest tuple.
// Writes come only from the dispatching goroutine; the mutex exists for
// snapshot readers (web/status).
type ConfigStore struct {
	mu      sync.RWMutex
	entries map[ubx.Identity]ConfigEntry
}

func NewConfigStore() *ConfigStore {
	return &ConfigStore{entries: make(map[ubx.Identity]ConfigEntry)}
}

func (s *ConfigStore) set(id ubx.Identity, e ConfigEntry) {
	s.mu.Lock()
	s.entries[id] = e
	s.mu.Unlock()
}

// Get returns the stored entry for id, if any.
func (s *ConfigStore) Get(id ubx.Identity) (ConfigEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	return e, ok
}

// Len reports how many identities have an entry.
func (s *ConfigStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Snapshot returns a stable copy of the store keyed by identity string,
// sorted iteration left to callers via the map.
func (s *ConfigStore) Snapshot() map[string]ConfigEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]ConfigEntry, len(s.entries))
	for k, v := range s.entries {
		out[string(k)] = v
	}
	return out
}

// Identities returns the stored identities in sorted order.
func (s *ConfigStore) Identities() []string {
	s.mu.RLock()
	out := make([]string, 0, len(s.entries))
	for k := range s.entries {
		out = append(out, string(k))
	}
	s.mu.RUnlock()
	sort.Strings(out)
	return out
}

// handleCfgMsg stores the per-port rates of a CFG-MSG response under
// the identity of the message the rates apply to.
func (d *Dispatcher) handleCfgMsg(m ubx.Message) error {
	p := m.Payload
	msgClass, err := p.U1(0)
	if err != nil {
		return fmt.Errorf("msgClass: %w", err)
	}
	msgID, err := p.U1(1)
	if err != nil {
		return fmt.Errorf("msgID: %w", err)
	}
	target, ok := ubx.IdentityOf(msgClass, msgID)
	if !ok {
		// The key set is closed; an unlisted target cannot grow it.
		return fmt.Errorf("msgClass/msgID 0x%02X/0x%02X not in catalog: %w",
			msgClass, msgID, &ubx.FieldError{Off: 0, Width: 2, Len: len(p)})
	}

	var rates [6]uint8
	for i := range rates {
		v, err := p.U1(2 + i)
		if err != nil {
			return fmt.Errorf("rate[%d]: %w", i, err)
		}
		rates[i] = v
	}

	d.cfg.set(target, ConfigEntry{MsgRates: &MessageRates{
		DDC:      rates[0],
		UART1:    rates[1],
		UART2:    rates[2],
		USB:      rates[3],
		SPI:      rates[4],
		Reserved: rates[5],
	}})
	return nil
}

// handleCfgInf stores the per-port info-message masks of a CFG-INF
// response under the fixed identity CFG-INF.
func (d *Dispatcher) handleCfgInf(m ubx.Message) error {
	p := m.Payload
	var masks [5]uint8
	for i := range masks {
		v, err := p.U1(4 + i)
		if err != nil {
			return fmt.Errorf("infMsgMask[%d]: %w", i, err)
		}
		masks[i] = v
	}

	d.cfg.set(ubx.CFGINF, ConfigEntry{InfoMasks: &InfoMasks{
		DDC:   masks[0],
		UART1: masks[1],
		UART2: masks[2],
		USB:   masks[3],
		SPI:   masks[4],
	}})
	return nil
}

// handleCfgPrt stores the port configuration of a CFG-PRT response
// under the fixed identity CFG-PRT.
func (d *Dispatcher) handleCfgPrt(m ubx.Message) error {
	p := m.Payload
	mode, err := p.U4(4)
	if err != nil {
		return fmt.Errorf("mode: %w", err)
	}
	baud, err := p.U4(8)
	if err != nil {
		return fmt.Errorf("baudRate: %w", err)
	}
	inMask, err := p.U2(12)
	if err != nil {
		return fmt.Errorf("inProtoMask: %w", err)
	}
	outMask, err := p.U2(14)
	if err != nil {
		return fmt.Errorf("outProtoMask: %w", err)
	}

	d.cfg.set(ubx.CFGPRT, ConfigEntry{Port: &PortConfig{
		Mode:         mode,
		BaudRate:     baud,
		InProtoMask:  inMask,
		OutProtoMask: outMask,
	}})
	return nil
}
