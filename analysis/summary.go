// Package analysis summarises rendered audio: level, decay and pitch.
package analysis

import (
	"math"
	"math/cmplx"

	algofft "github.com/cwbudde/algo-fft"
)

const (
	envFrame = 256
	envHop   = 128
	fftSize  = 4096
	fftHop   = 2048
	maxFFTs  = 32
)

// Summary describes one render.
type Summary struct {
	SampleRate int     `json:"sample_rate"`
	Frames     int     `json:"frames"`
	Duration   float64 `json:"duration_s"`

	Peak   float64 `json:"peak"`
	PeakDB float64 `json:"peak_db"`
	RMS    float64 `json:"rms"`

	// DecayDBPerS is the slope of the RMS envelope after its peak, or 0 when
	// the render is too short or flat to fit one.
	DecayDBPerS float64 `json:"decay_db_per_s"`
	// DominantHz is the strongest partial of the mono mix, 0 for silence.
	DominantHz float64 `json:"dominant_hz"`
}

// Summarize analyses interleaved stereo samples.
func Summarize(interleaved []float32, sampleRate int) Summary {
	frames := len(interleaved) / 2
	s := Summary{SampleRate: sampleRate, Frames: frames}
	if sampleRate <= 0 || frames == 0 {
		return s
	}
	s.Duration = float64(frames) / float64(sampleRate)

	mono := make([]float64, frames)
	var sum float64
	for i := range frames {
		l := float64(interleaved[i*2])
		r := float64(interleaved[i*2+1])
		s.Peak = math.Max(s.Peak, math.Max(math.Abs(l), math.Abs(r)))
		sum += l*l + r*r
		mono[i] = 0.5 * (l + r)
	}
	s.RMS = math.Sqrt(sum / float64(2*frames))
	s.PeakDB = linToDB(s.Peak)

	env := rmsEnvelope(mono, envFrame, envHop)
	if d := decaySlopeDBPerS(env, float64(envHop)/float64(sampleRate)); isFinite(d) {
		s.DecayDBPerS = d
	}
	s.DominantHz = dominantHz(trimLeadingSilence(mono, 1e-6), sampleRate)
	return s
}

// dominantHz averages Hann-windowed spectra over the start of x and refines
// the loudest bin with a log-magnitude parabola.
func dominantHz(x []float64, sampleRate int) float64 {
	if len(x) == 0 {
		return 0
	}
	plan, err := algofft.NewPlanReal64(fftSize)
	if err != nil {
		return 0
	}
	hann := make([]float64, fftSize)
	for i := range hann {
		hann[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(fftSize-1))
	}
	buf := make([]float64, fftSize)
	spec := make([]complex128, fftSize/2+1)
	avg := make([]float64, fftSize/2)

	for pos, n := 0, 0; n < maxFFTs && (pos == 0 || pos+fftSize <= len(x)); pos, n = pos+fftHop, n+1 {
		for i := range buf {
			buf[i] = 0
			if pos+i < len(x) {
				buf[i] = x[pos+i] * hann[i]
			}
		}
		plan.Forward(spec, buf)
		for k := 1; k < len(avg); k++ {
			avg[k] += cmplx.Abs(spec[k])
		}
	}

	best := 1
	for k := 2; k < len(avg)-1; k++ {
		if avg[k] > avg[best] {
			best = k
		}
	}
	if avg[best] < 1e-9 {
		return 0
	}
	offset := 0.0
	if best+1 < len(avg) {
		a := linToDB(avg[best-1])
		b := linToDB(avg[best])
		c := linToDB(avg[best+1])
		if den := a - 2*b + c; den != 0 {
			offset = 0.5 * (a - c) / den
		}
	}
	return (float64(best) + offset) * float64(sampleRate) / fftSize
}

func trimLeadingSilence(x []float64, threshold float64) []float64 {
	for i, v := range x {
		if math.Abs(v) > threshold {
			return x[i:]
		}
	}
	return nil
}

func rms1(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	var sum float64
	for _, v := range x {
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(x)))
}

func rmsEnvelope(x []float64, frame int, hop int) []float64 {
	if frame <= 0 || hop <= 0 || len(x) < frame {
		return nil
	}
	out := make([]float64, 1+(len(x)-frame)/hop)
	for i := range out {
		out[i] = rms1(x[i*hop : i*hop+frame])
	}
	return out
}

func linToDB(x float64) float64 {
	return 20.0 * math.Log10(math.Max(x, 1e-12))
}

// decaySlopeDBPerS fits a line to the envelope in dB from its peak down to
// 60 dB below it.
func decaySlopeDBPerS(env []float64, hopSec float64) float64 {
	if len(env) < 8 || hopSec <= 0 {
		return math.NaN()
	}
	peak := -math.MaxFloat64
	peakIdx := 0
	for i, v := range env {
		if db := linToDB(v); db > peak {
			peak = db
			peakIdx = i
		}
	}
	start := peakIdx + 1
	if start >= len(env)-4 {
		return math.NaN()
	}
	end := len(env)
	for i := start; i < len(env); i++ {
		if linToDB(env[i]) < peak-60.0 {
			end = i
			break
		}
	}
	if end-start < 6 {
		return math.NaN()
	}

	var sx, sy, sxx, sxy float64
	n := float64(end - start)
	for i := start; i < end; i++ {
		x := float64(i-start) * hopSec
		y := linToDB(env[i])
		sx += x
		sy += y
		sxx += x * x
		sxy += x * y
	}
	den := n*sxx - sx*sx
	if math.Abs(den) < 1e-12 {
		return math.NaN()
	}
	return (n*sxy - sx*sy) / den
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
