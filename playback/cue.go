package playback

import "math"

var cuesDisabled bool

// DisableCues silences CueStart, CueStop and CueError.
func DisableCues() { cuesDisabled = true }

const (
	cueRate = 44100

	startFreq   = 1200
	startVolume = 0.5
	startDecay  = 60

	stopFreq   = 900
	stopVolume = 0.5
	stopDecay  = 40

	errorFreq   = 350
	errorVolume = 0.6
	errorDecay  = 30
)

// tick renders a decaying sine as mono PCM16 samples.
func tick(rate int, freq, duration, volume, decay float64) []int16 {
	n := int(float64(rate) * duration)
	out := make([]int16, n)
	for i := range out {
		t := float64(i) / float64(rate)
		out[i] = int16(math.Sin(2*math.Pi*freq*t) * 32767 * volume * math.Exp(-t*decay))
	}
	return out
}

func doubleTick(rate int, freq, beepDur, gapDur, volume, decay float64) []int16 {
	b := tick(rate, freq, beepDur, volume, decay)
	gap := make([]int16, int(float64(rate)*gapDur))
	out := make([]int16, 0, len(b)*2+len(gap))
	out = append(out, b...)
	out = append(out, gap...)
	return append(out, b...)
}

func startTone() []int16 { return tick(cueRate, startFreq, cueDuration, startVolume, startDecay) }
func stopTone() []int16  { return tick(cueRate, stopFreq, cueDuration, stopVolume, stopDecay) }
func errorTone() []int16 {
	return doubleTick(cueRate, errorFreq, 0.08, 0.05, errorVolume, errorDecay)
}

func CueStart() {
	if !cuesDisabled {
		playTone(startTone)
	}
}

func CueStop() {
	if !cuesDisabled {
		playTone(stopTone)
	}
}

func CueError() {
	if !cuesDisabled {
		playTone(errorTone)
	}
}
