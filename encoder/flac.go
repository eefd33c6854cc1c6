package encoder

import (
	"bytes"

	"github.com/mewkiz/flac"
	"github.com/mewkiz/flac/frame"
	"github.com/mewkiz/flac/meta"

	"interview/errors"
)

// flacStream builds one in-memory FLAC file from mono PCM16 blocks. Each
// block becomes a single verbatim subframe.
type flacStream struct {
	out     bytes.Buffer
	enc     *flac.Encoder
	samples uint64
}

func newFlacStream() (*flacStream, error) {
	s := &flacStream{}
	enc, err := flac.NewEncoder(&s.out, &meta.StreamInfo{
		BlockSizeMin:  BlockSize,
		BlockSizeMax:  BlockSize,
		SampleRate:    SampleRate,
		NChannels:     Channels,
		BitsPerSample: BitsPerSample,
	})
	if err != nil {
		return nil, errors.Wrap(err, "creating flac encoder")
	}
	enc.EnablePredictionAnalysis(true)
	s.enc = enc
	return s, nil
}

func (s *flacStream) write(block []int16) error {
	wide := make([]int32, len(block))
	for i, v := range block {
		wide[i] = int32(v)
	}
	err := s.enc.WriteFrame(&frame.Frame{
		Header: frame.Header{
			BlockSize:     uint16(len(block)),
			SampleRate:    SampleRate,
			Channels:      frame.ChannelsMono,
			BitsPerSample: BitsPerSample,
		},
		Subframes: []*frame.Subframe{{
			SubHeader: frame.SubHeader{Pred: frame.PredVerbatim},
			Samples:   wide,
			NSamples:  len(block),
		}},
	})
	if err != nil {
		return errors.Wrapf(err, "writing flac frame %d", s.samples/BlockSize)
	}
	s.samples += uint64(len(block))
	return nil
}

// finish flushes the stream header and returns the encoded file.
func (s *flacStream) finish() ([]byte, error) {
	if err := s.enc.Close(); err != nil {
		return nil, errors.Wrap(err, "closing flac encoder")
	}
	return s.out.Bytes(), nil
}

func encodeFLAC(samples []int16) ([]byte, error) {
	s, err := newFlacStream()
	if err != nil {
		return nil, err
	}
	for i := 0; i < len(samples); i += BlockSize {
		if err := s.write(samples[i:min(i+BlockSize, len(samples))]); err != nil {
			return nil, err
		}
	}
	return s.finish()
}
