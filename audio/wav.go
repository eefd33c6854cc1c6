package audio

import (
	"encoding/binary"

	"interview/errors"
)

var ErrBadWAV = errors.New("not a 16-bit PCM WAV file")

// readWAVPCM returns the sample data of a RIFF/WAVE file. The file must be
// 16-bit PCM mono at rate; other chunks are skipped.
func readWAVPCM(data []byte, rate uint32) ([]byte, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, errors.Wrap(ErrBadWAV, "missing RIFF/WAVE header")
	}
	var sawFormat bool
	for pos := 12; pos+8 <= len(data); {
		id := string(data[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(data[pos+4:]))
		body := data[pos+8:]
		if size > len(body) {
			size = len(body)
		}
		body = body[:size]

		switch id {
		case "fmt ":
			if size < 16 {
				return nil, errors.Wrap(ErrBadWAV, "short fmt chunk")
			}
			format := binary.LittleEndian.Uint16(body[0:])
			channels := binary.LittleEndian.Uint16(body[2:])
			sampleRate := binary.LittleEndian.Uint32(body[4:])
			bits := binary.LittleEndian.Uint16(body[14:])
			if format != 1 || bits != 16 || channels != 1 || sampleRate != rate {
				return nil, errors.Wrapf(ErrBadWAV, "format=%d channels=%d rate=%d bits=%d, want mono 16-bit PCM at %d",
					format, channels, sampleRate, bits, rate)
			}
			sawFormat = true
		case "data":
			if !sawFormat {
				return nil, errors.Wrap(ErrBadWAV, "data before fmt chunk")
			}
			return body, nil
		}
		pos += 8 + size + size%2
	}
	return nil, errors.Wrap(ErrBadWAV, "no data chunk")
}
