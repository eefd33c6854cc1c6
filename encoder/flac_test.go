package encoder

import (
	"encoding/binary"
	"testing"

	"interview/errors"
)

func pcmRamp(samples int) []byte {
	pcm := make([]byte, samples*2)
	for i := range samples {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(i%1000))
	}
	return pcm
}

func TestEncodeEmptyUtterance(t *testing.T) {
	out, err := encodeFLAC(nil)
	if err != nil {
		t.Fatalf("encodeFLAC: %v", err)
	}
	if len(out) < 4 || string(out[:4]) != "fLaC" {
		t.Error("expected a FLAC header for an empty utterance")
	}
}

func TestFlacStreamCountsSamples(t *testing.T) {
	s, err := newFlacStream()
	if err != nil {
		t.Fatalf("newFlacStream: %v", err)
	}
	if err := s.write(Samples(pcmRamp(BlockSize))); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := s.write(Samples(pcmRamp(100))); err != nil {
		t.Fatalf("write: %v", err)
	}
	if s.samples != BlockSize+100 {
		t.Errorf("samples = %d, want %d", s.samples, BlockSize+100)
	}
	if _, err := s.finish(); err != nil {
		t.Fatalf("finish: %v", err)
	}
}

func TestSamples(t *testing.T) {
	got := Samples([]byte{0x01, 0x00, 0xff, 0xff, 0x07})
	if len(got) != 2 || got[0] != 1 || got[1] != -1 {
		t.Errorf("Samples = %v, want [1 -1]", got)
	}
}

func TestPackFLAC(t *testing.T) {
	pcm := pcmRamp(BlockSize + BlockSize/4)

	out, err := Pack(FormatFLAC, pcm)
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}
	if len(out) < 4 || string(out[:4]) != "fLaC" {
		t.Fatal("output does not start with FLAC magic")
	}
}

func TestPackPCMPassthrough(t *testing.T) {
	pcm := pcmRamp(10)
	for _, format := range []string{"", FormatPCM} {
		out, err := Pack(format, pcm)
		if err != nil {
			t.Fatalf("Pack(%q): %v", format, err)
		}
		if string(out) != string(pcm) {
			t.Errorf("Pack(%q) altered PCM", format)
		}
	}
}

func TestPackUnknownFormat(t *testing.T) {
	_, err := Pack("ogg", pcmRamp(4))
	if !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("Pack(ogg) error = %v, want ErrUnknownFormat", err)
	}
}

func TestValidFormat(t *testing.T) {
	for _, tt := range []struct {
		format string
		want   bool
	}{
		{"pcm", true},
		{"flac", true},
		{"mp3", false},
		{"", false},
	} {
		if got := ValidFormat(tt.format); got != tt.want {
			t.Errorf("ValidFormat(%q) = %v, want %v", tt.format, got, tt.want)
		}
	}
}
