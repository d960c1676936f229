package ubx

import (
	"bufio"
	"fmt"
)

// ReadFrame scans br for the next complete UBX frame and returns it,
// sync bytes through checksum. Bytes that are not part of a frame
// (NMEA sentences, line noise) are skipped. A length field beyond
// MaxPayloadLen is treated as corrupt and the scan resynchronizes at
// the next sync marker.
//
// ReadFrame does not validate the checksum; that is Parse's job, so a
// corrupted frame still reaches the dispatcher and is counted there.
func ReadFrame(br *bufio.Reader) ([]byte, error) {
	for {
		b, err := br.ReadByte()
		if err != nil {
			return nil, err
		}
		if b != sync1 {
			continue
		}
		next, err := br.Peek(1)
		if err != nil {
			return nil, err
		}
		if next[0] != sync2 {
			continue
		}

		header := make([]byte, headerLen-1)
		if _, err := readFull(br, header); err != nil {
			return nil, err
		}
		plen := int(header[3]) | int(header[4])<<8
		if plen > MaxPayloadLen {
			// Corrupt length; drop and resync.
			continue
		}

		rest := make([]byte, plen+checksumLen)
		if _, err := readFull(br, rest); err != nil {
			return nil, err
		}

		frame := make([]byte, 0, headerLen+plen+checksumLen)
		frame = append(frame, sync1)
		frame = append(frame, header...)
		frame = append(frame, rest...)
		return frame, nil
	}
}

// readFull is io.ReadFull over the buffered reader, byte-accurate for
// short reads from slow serial ports.
func readFull(br *bufio.Reader, buf []byte) (int, error) {
	n := 0
	for n < len(buf) {
		m, err := br.Read(buf[n:])
		n += m
		if err != nil {
			return n, fmt.Errorf("short frame read after %d bytes: %w", n, err)
		}
	}
	return n, nil
}
