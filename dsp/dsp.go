package dsp

import (
	"math"

	"github.com/cwbudde/algo-approx"
	"github.com/cwbudde/algo-dsp/dsp/filter/biquad"

	"github.com/cwbudde/algo-polysynth/graph"
)

const (
	a4Freq = 440.0
	a4Note = 69.0
)

// FilterCoefficients designs an RBJ biquad for the given response.
// FilterOff and out-of-range frequencies yield a passthrough section.
func FilterCoefficients(t graph.FilterType, freq, q, sampleRate float64) biquad.Coefficients {
	pass := biquad.Coefficients{B0: 1}
	if sampleRate <= 0 || t == graph.FilterOff {
		return pass
	}
	nyquist := 0.5 * sampleRate
	if freq < 10 {
		freq = 10
	}
	if freq > nyquist*0.99 {
		freq = nyquist * 0.99
	}
	if q < 1e-4 {
		q = 1e-4
	}

	w0 := 2.0 * math.Pi * freq / sampleRate
	cw := math.Cos(w0)
	alpha := math.Sin(w0) / (2.0 * q)
	inv := 1.0 / (1.0 + alpha)

	switch t {
	case graph.FilterLowpass:
		return biquad.Coefficients{
			B0: ((1 - cw) * 0.5) * inv,
			B1: (1 - cw) * inv,
			B2: ((1 - cw) * 0.5) * inv,
			A1: (-2 * cw) * inv,
			A2: (1 - alpha) * inv,
		}
	case graph.FilterHighpass:
		return biquad.Coefficients{
			B0: ((1 + cw) * 0.5) * inv,
			B1: -(1 + cw) * inv,
			B2: ((1 + cw) * 0.5) * inv,
			A1: (-2 * cw) * inv,
			A2: (1 - alpha) * inv,
		}
	case graph.FilterBandpass:
		// Constant 0 dB peak gain.
		return biquad.Coefficients{
			B0: alpha * inv,
			B2: -alpha * inv,
			A1: (-2 * cw) * inv,
			A2: (1 - alpha) * inv,
		}
	}
	return pass
}

// Waveform evaluates one oscillator shape at phase in [0,1).
// width only affects WavePWM and is clamped to (-1,1).
func Waveform(w graph.Waveform, phase float64, width float64) float64 {
	switch w {
	case graph.WaveSquare:
		if phase < 0.5 {
			return 1
		}
		return -1
	case graph.WaveSawtooth:
		return 2*phase - 1
	case graph.WaveTriangle:
		if phase < 0.5 {
			return 4*phase - 1
		}
		return 3 - 4*phase
	case graph.WavePWM:
		if width > 0.99 {
			width = 0.99
		}
		if width < -0.99 {
			width = -0.99
		}
		if phase < 0.5*(1+width) {
			return 1
		}
		return -1
	}
	return math.Sin(2 * math.Pi * phase)
}

// NoteToFrequency converts a (fractional) MIDI note to Hz.
func NoteToFrequency(note float64) float64 {
	return a4Freq * float64(pow2Approx(float32((note-a4Note)/12.0)))
}

// CentsToRatio converts a pitch offset in cents to a frequency ratio.
func CentsToRatio(cents float64) float64 {
	return math.Exp2(cents / 1200.0)
}

func pow2Approx(x float32) float32 {
	const ln2 = 0.69314718055994530942
	return approx.FastExp(x * ln2)
}

// Remap linearly maps x from [inLo,inHi] onto [outLo,outHi] without clamping.
func Remap(x, inLo, inHi, outLo, outHi float64) float64 {
	if inHi == inLo {
		return outLo
	}
	return outLo + (x-inLo)*(outHi-outLo)/(inHi-inLo)
}

// Clamp limits x to [lo,hi].
func Clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
