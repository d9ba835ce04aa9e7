package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/cwbudde/algo-polysynth/analysis"
	"github.com/cwbudde/algo-polysynth/internal/wavio"
	"github.com/cwbudde/algo-polysynth/irsynth"
)

func main() {
	cfg := irsynth.DefaultRoomConfig()

	output := flag.String("output", "assets/ir/room_48k.wav", "Output WAV path")
	flag.IntVar(&cfg.SampleRate, "sample-rate", cfg.SampleRate, "Output sample rate")
	flag.Float64Var(&cfg.Duration, "duration", cfg.Duration, "IR length in seconds")
	flag.Int64Var(&cfg.Seed, "seed", cfg.Seed, "Random seed")
	flag.IntVar(&cfg.Reflections, "early", cfg.Reflections, "Number of early reflections")
	flag.Float64Var(&cfg.TailLevel, "late", cfg.TailLevel, "Diffuse late-tail level")
	flag.Float64Var(&cfg.Width, "stereo-width", cfg.Width, "Stereo spread of reflections")
	flag.Float64Var(&cfg.Brightness, "brightness", cfg.Brightness, "Spectral brightness control (>0)")
	flag.Float64Var(&cfg.LowDecay, "low-decay", cfg.LowDecay, "Low-frequency decay time (s)")
	flag.Float64Var(&cfg.HighDecay, "high-decay", cfg.HighDecay, "High-frequency decay time (s)")
	flag.Float64Var(&cfg.Fade, "fade", cfg.Fade, "Cosine fade-out length (s)")
	flag.Float64Var(&cfg.Peak, "normalize", cfg.Peak, "Peak normalization target")
	flag.Parse()

	left, right, err := irsynth.GenerateRoom(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ir-synth error: %v\n", err)
		os.Exit(1)
	}

	data := make([]float32, len(left)*2)
	for i := range left {
		data[i*2] = left[i]
		data[i*2+1] = right[i]
	}
	if err := wavio.WriteStereoInterleaved(*output, data, cfg.SampleRate); err != nil {
		fmt.Fprintf(os.Stderr, "wav write error: %v\n", err)
		os.Exit(1)
	}

	s := analysis.Summarize(data, cfg.SampleRate)
	fmt.Printf("Wrote %s\n", *output)
	fmt.Printf("SampleRate: %d Hz, Duration: %.3f s, Samples: %d\n", cfg.SampleRate, s.Duration, s.Frames)
	fmt.Printf("Peak: %.6f, RMS: %.6f, Decay: %.1f dB/s\n", s.Peak, s.RMS, s.DecayDBPerS)
}
