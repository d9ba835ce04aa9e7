package wavio

import (
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	dspresample "github.com/cwbudde/algo-dsp/dsp/resample"
	"github.com/cwbudde/wav"
	"github.com/go-audio/audio"
)

// Decode reads a WAV stream into de-interleaved channels.
func Decode(r io.ReadSeeker) ([][]float32, int, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, 0, fmt.Errorf("invalid wav file")
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, err
	}
	if buf == nil || buf.Format == nil || buf.Format.NumChannels < 1 {
		return nil, 0, fmt.Errorf("invalid wav buffer")
	}
	if buf.Format.SampleRate <= 0 {
		return nil, 0, fmt.Errorf("invalid wav sample-rate: %d", buf.Format.SampleRate)
	}
	numCh := buf.Format.NumChannels
	frames := len(buf.Data) / numCh
	if frames == 0 {
		return nil, 0, fmt.Errorf("empty wav data")
	}
	channels := make([][]float32, numCh)
	for c := range channels {
		ch := make([]float32, frames)
		for i := range frames {
			ch[i] = float32(buf.Data[i*numCh+c])
		}
		channels[c] = ch
	}
	return channels, buf.Format.SampleRate, nil
}

// ReadFile decodes the WAV file at path.
func ReadFile(path string) ([][]float32, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()
	channels, rate, err := Decode(f)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", path, err)
	}
	return channels, rate, nil
}

// Resample converts in from fromRate to toRate. It returns in unchanged when
// the rates match.
func Resample(in []float32, fromRate int, toRate int) ([]float32, error) {
	if fromRate == toRate {
		return in, nil
	}
	r, err := dspresample.NewForRates(
		float64(fromRate),
		float64(toRate),
		dspresample.WithQuality(dspresample.QualityBest),
	)
	if err != nil {
		return nil, err
	}
	in64 := make([]float64, len(in))
	for i, v := range in {
		in64[i] = float64(v)
	}
	out64 := r.Process(in64)
	out := make([]float32, len(out64))
	for i, v := range out64 {
		out[i] = float32(v)
	}
	return out, nil
}

func WriteStereoInterleaved(path string, samples []float32, sampleRate int) error {
	return write(path, samples, sampleRate, 2)
}

func WriteMono(path string, data []float32, sampleRate int) error {
	return write(path, data, sampleRate, 1)
}

func write(path string, data []float32, sampleRate int, channels int) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := wav.NewEncoder(f, sampleRate, 16, channels, 1)
	defer enc.Close()

	buf := &audio.Float32Buffer{
		Format: &audio.Format{
			SampleRate:  sampleRate,
			NumChannels: channels,
		},
		Data:           data,
		SourceBitDepth: 16,
	}
	return enc.Write(buf)
}

// Normalize scales interleaved samples so the absolute peak equals peak.
// Silent input is left unchanged.
func Normalize(samples []float32, peak float64) {
	var maxAbs float64
	for _, s := range samples {
		maxAbs = math.Max(maxAbs, math.Abs(float64(s)))
	}
	if maxAbs == 0 {
		return
	}
	g := float32(peak / maxAbs)
	for i := range samples {
		samples[i] *= g
	}
}
