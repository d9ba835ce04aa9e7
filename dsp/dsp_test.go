package dsp

import (
	"math"
	"testing"

	"github.com/cwbudde/algo-polysynth/graph"
)

func TestNoteToFrequencyA4(t *testing.T) {
	got := NoteToFrequency(69)
	if math.Abs(got-440) > 1.0 {
		t.Fatalf("A4 mismatch: got=%f want=440", got)
	}
	octave := NoteToFrequency(81)
	if math.Abs(octave-880) > 2.0 {
		t.Fatalf("A5 mismatch: got=%f want=880", octave)
	}
}

func TestFilterCoefficientsOffIsPassthrough(t *testing.T) {
	c := FilterCoefficients(graph.FilterOff, 1000, 0.7, 48000)
	if c.B0 != 1 || c.B1 != 0 || c.B2 != 0 || c.A1 != 0 || c.A2 != 0 {
		t.Fatalf("expected passthrough coefficients, got %+v", c)
	}
}

func TestLowpassHasUnityDCGain(t *testing.T) {
	c := FilterCoefficients(graph.FilterLowpass, 1000, 0.707, 48000)
	dc := (c.B0 + c.B1 + c.B2) / (1 + c.A1 + c.A2)
	if math.Abs(dc-1) > 1e-9 {
		t.Fatalf("lowpass DC gain: got=%f want=1", dc)
	}
	hp := FilterCoefficients(graph.FilterHighpass, 1000, 0.707, 48000)
	hpDC := (hp.B0 + hp.B1 + hp.B2) / (1 + hp.A1 + hp.A2)
	if math.Abs(hpDC) > 1e-9 {
		t.Fatalf("highpass DC gain: got=%f want=0", hpDC)
	}
}

func TestWaveformRanges(t *testing.T) {
	for _, w := range []graph.Waveform{graph.WaveSine, graph.WaveSquare, graph.WaveSawtooth, graph.WaveTriangle, graph.WavePWM} {
		for i := 0; i < 100; i++ {
			v := Waveform(w, float64(i)/100, 0.3)
			if v < -1.0000001 || v > 1.0000001 {
				t.Fatalf("%s out of range at phase %d: %f", w, i, v)
			}
		}
	}
}

func TestPWMWidthShiftsDutyCycle(t *testing.T) {
	high := 0
	for i := 0; i < 1000; i++ {
		if Waveform(graph.WavePWM, float64(i)/1000, 0.5) > 0 {
			high++
		}
	}
	if high < 740 || high > 760 {
		t.Fatalf("expected ~75%% duty cycle, got %d/1000", high)
	}
}

func TestRemapVelocityScale(t *testing.T) {
	if got := 1 - Remap(64, 0, 128, 0.5, -0.5); math.Abs(got-1) > 1e-12 {
		t.Fatalf("centre velocity should be neutral: got=%f", got)
	}
	if got := 1 - Remap(0, 0, 128, 0.5, -0.5); math.Abs(got-0.5) > 1e-12 {
		t.Fatalf("zero velocity scale: got=%f want=0.5", got)
	}
}
