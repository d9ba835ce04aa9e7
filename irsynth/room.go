// Package irsynth generates synthetic stereo room impulse responses. The
// render tool uses one as the default impulse for an instrument's verb send.
package irsynth

import (
	"fmt"
	"math"
	"math/rand"
)

// RoomConfig controls room impulse generation.
type RoomConfig struct {
	SampleRate  int
	Duration    float64 // seconds
	Seed        int64
	Reflections int     // early reflections in the first 50 ms
	TailLevel   float64 // diffuse tail level, 0 disables the tail
	Width       float64 // stereo spread of reflections, 0 is mono
	Brightness  float64
	LowDecay    float64 // seconds
	HighDecay   float64 // seconds
	Fade        float64 // cosine fade-out in seconds, 0 disables it

	Peak float64
}

// DefaultRoomConfig returns a one-second medium room at 48 kHz.
func DefaultRoomConfig() RoomConfig {
	return RoomConfig{
		SampleRate:  48000,
		Duration:    1.0,
		Seed:        1,
		Reflections: 24,
		TailLevel:   0.06,
		Width:       0.6,
		Brightness:  0.8,
		LowDecay:    1.2,
		HighDecay:   0.2,
		Fade:        0.01,
		Peak:        0.9,
	}
}

func (c *RoomConfig) Validate() error {
	switch {
	case c.SampleRate < 8000:
		return fmt.Errorf("sample rate too low: %d", c.SampleRate)
	case c.Duration <= 0:
		return fmt.Errorf("duration must be > 0")
	case c.Reflections < 0:
		return fmt.Errorf("reflections must be >= 0")
	case c.TailLevel < 0:
		return fmt.Errorf("tail level must be >= 0")
	case c.Width < 0:
		return fmt.Errorf("width must be >= 0")
	case c.Brightness <= 0:
		return fmt.Errorf("brightness must be > 0")
	case c.LowDecay <= 0 || c.HighDecay <= 0:
		return fmt.Errorf("decay seconds must be > 0")
	case c.Peak <= 0:
		return fmt.Errorf("peak must be > 0")
	}
	return nil
}

// GenerateRoom builds a stereo impulse from scattered early reflections and a
// two-band noise tail, normalised to cfg.Peak. The same seed always yields
// the same impulse.
func GenerateRoom(cfg RoomConfig) ([]float32, []float32, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	n := max(int(math.Round(cfg.Duration*float64(cfg.SampleRate))), 1)
	left := make([]float64, n)
	right := make([]float64, n)
	rng := rand.New(rand.NewSource(cfg.Seed))

	scatterReflections(left, right, cfg, rng)
	if cfg.TailLevel > 0 {
		addTail(left, right, cfg, rng)
	}
	for _, ch := range [][]float64{left, right} {
		blockDC(ch, 0.995)
		fadeOut(ch, cfg.Fade, cfg.SampleRate)
	}

	s := cfg.Peak / max(peakOf(left), peakOf(right), 1e-12)
	outL := make([]float32, n)
	outR := make([]float32, n)
	for i := range n {
		outL[i] = float32(left[i] * s)
		outR[i] = float32(right[i] * s)
	}
	return outL, outR, nil
}

func scatterReflections(left, right []float64, cfg RoomConfig, rng *rand.Rand) {
	for range cfg.Reflections {
		t := 0.001 + 0.049*rng.Float64()
		idx := int(t * float64(cfg.SampleRate))
		if idx <= 0 || idx >= len(left) {
			continue
		}
		amp := (0.10 + 0.35*rng.Float64()) * math.Exp(-t*20.0)
		amp *= math.Pow(0.5+0.5*rng.Float64(), 1.0/cfg.Brightness)
		pan := (rng.Float64()*2.0 - 1.0) * cfg.Width
		left[idx] += amp * (1.0 - 0.5*pan)
		right[idx] += amp * (1.0 + 0.5*pan)
	}
}

// addTail mixes a slow low band with a fast-decaying bright band. The bright
// band vanishes below a brightness of 0.3.
func addTail(left, right []float64, cfg RoomConfig, rng *rand.Rand) {
	bright := max(0.3*(cfg.Brightness-0.3), 0)
	var lowL, lowR, highL, highR float64
	for i := range left {
		t := float64(i) / float64(cfg.SampleRate)
		lowEnv := math.Exp(-t / (0.75 * cfg.LowDecay))
		highEnv := math.Exp(-t / (0.75 * cfg.HighDecay))

		nL := rng.NormFloat64()
		nR := rng.NormFloat64()
		lowL = 0.985*lowL + 0.015*nL
		lowR = 0.985*lowR + 0.015*nR
		highL = 0.15*nL - 0.15*highL
		highR = 0.15*nR - 0.15*highR

		left[i] += cfg.TailLevel * (lowEnv*lowL + bright*highEnv*highL)
		right[i] += cfg.TailLevel * (lowEnv*lowR + bright*highEnv*highR)
	}
}

func blockDC(x []float64, r float64) {
	var prevIn, prevOut float64
	for i, v := range x {
		y := v - prevIn + r*prevOut
		prevIn, prevOut = v, y
		x[i] = y
	}
}

func fadeOut(x []float64, seconds float64, sampleRate int) {
	if seconds <= 0 || len(x) == 0 {
		return
	}
	n := min(int(math.Round(seconds*float64(sampleRate))), len(x))
	start := len(x) - n
	for i := range n {
		x[start+i] *= 0.5 * (1.0 + math.Cos(math.Pi*float64(i)/float64(n)))
	}
}

func peakOf(x []float64) float64 {
	m := 0.0
	for _, v := range x {
		m = max(m, math.Abs(v))
	}
	return m
}
