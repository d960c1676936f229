package ubx

import (
	"fmt"
	"io"
)

// PollConfig writes the full configuration poll sweep to w: a CFG-PRT
// poll, a CFG-USB poll, one CFG-MSG rate poll per catalog entry, and a
// CFG-INF poll. Polls are fire-and-forget; responses arrive later on
// the read side and only when the receiver's output protocol includes
// UBX.
//
// The sweep order is fixed so repeated sweeps are byte-identical.
func PollConfig(w io.Writer) error {
	for _, frame := range PollFrames() {
		if _, err := w.Write(frame); err != nil {
			return fmt.Errorf("config poll write: %w", err)
		}
	}
	return nil
}

// PollFrames returns the encoded sweep in emission order.
func PollFrames() [][]byte {
	frames := make([][]byte, 0, len(configMessages)+3)
	frames = append(frames, Encode(classCFG, idCFGPRT, nil))
	frames = append(frames, Encode(classCFG, idCFGUSB, nil))
	for _, e := range configMessages {
		frames = append(frames, Encode(classCFG, idCFGMSG, []byte{e.Class, e.ID}))
	}
	// Poll the info-message config for protocol 0 (UBX).
	frames = append(frames, Encode(classCFG, idCFGINF, []byte{0x00}))
	return frames
}
