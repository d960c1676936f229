package ubx

import "fmt"

// FieldError reports a fixed-width field read that falls outside the
// payload. Handlers catch it at their boundary and keep prior state.
type FieldError struct {
	Off   int
	Width int
	Len   int
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("ubx: field read out of range: offset=%d width=%d payload=%d", e.Off, e.Width, e.Len)
}

// Payload gives range-checked little-endian access to message fields.
// Accessors return the raw wire value; scaling belongs to the caller.
type Payload []byte

func (p Payload) check(off, width int) error {
	if off < 0 || off+width > len(p) {
		return &FieldError{Off: off, Width: width, Len: len(p)}
	}
	return nil
}

func (p Payload) U1(off int) (uint8, error) {
	if err := p.check(off, 1); err != nil {
		return 0, err
	}
	return p[off], nil
}

func (p Payload) I1(off int) (int8, error) {
	v, err := p.U1(off)
	return int8(v), err
}

func (p Payload) U2(off int) (uint16, error) {
	if err := p.check(off, 2); err != nil {
		return 0, err
	}
	return uint16(p[off]) | uint16(p[off+1])<<8, nil
}

func (p Payload) I2(off int) (int16, error) {
	v, err := p.U2(off)
	return int16(v), err
}

func (p Payload) U4(off int) (uint32, error) {
	if err := p.check(off, 4); err != nil {
		return 0, err
	}
	return uint32(p[off]) | uint32(p[off+1])<<8 | uint32(p[off+2])<<16 | uint32(p[off+3])<<24, nil
}

func (p Payload) I4(off int) (int32, error) {
	v, err := p.U4(off)
	return int32(v), err
}
