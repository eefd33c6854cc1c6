// Package encoder packs captured PCM into the formats the interview backend
// accepts for an utterance.
package encoder

import (
	"encoding/binary"

	"interview/errors"
)

const (
	SampleRate    = 16000
	Channels      = 1
	BitsPerSample = 16
	BlockSize     = 4096
)

const (
	FormatPCM  = "pcm"
	FormatFLAC = "flac"
)

var ErrUnknownFormat = errors.New("unknown utterance format")

// ValidFormat reports whether format names a supported utterance format.
func ValidFormat(format string) bool {
	return format == FormatPCM || format == FormatFLAC
}

// Pack converts little-endian PCM16 into format. PCM passes through
// unchanged; a trailing odd byte is dropped for FLAC.
func Pack(format string, pcm []byte) ([]byte, error) {
	switch format {
	case "", FormatPCM:
		return pcm, nil
	case FormatFLAC:
		return encodeFLAC(Samples(pcm))
	default:
		return nil, errors.Wrapf(ErrUnknownFormat, "%q", format)
	}
}

// Samples decodes little-endian PCM16.
func Samples(pcm []byte) []int16 {
	out := make([]int16, len(pcm)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(pcm[i*2:]))
	}
	return out
}
