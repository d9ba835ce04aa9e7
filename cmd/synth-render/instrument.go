package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cwbudde/algo-polysynth/graph/offline"
	"github.com/cwbudde/algo-polysynth/internal/wavio"
	"github.com/cwbudde/algo-polysynth/irsynth"
	"github.com/cwbudde/algo-polysynth/preset"
	"github.com/cwbudde/algo-polysynth/samples"
	"github.com/cwbudde/algo-polysynth/sfz"
	"github.com/cwbudde/algo-polysynth/synth"
)

// sampled is implemented by the SFZ-backed instruments.
type sampled interface {
	synth.Instrument
	LoadSamples(ctx context.Context) error
}

// buildInstrument creates the patch's instrument on ctx, loads its samples
// and applies the patch parameters.
func buildInstrument(cctx context.Context, ctx *offline.Context, p *preset.Patch, log *slog.Logger) (synth.Instrument, error) {
	var inst synth.Instrument
	switch p.Kind {
	case synth.KindFM:
		s, err := synth.NewFMSynth(ctx, synth.FMConfig{MaxPolyphony: p.Polyphony, Logger: log})
		if err != nil {
			return nil, err
		}
		inst = s
	case synth.KindSampler, synth.KindDrumKit:
		s, err := buildSampled(cctx, ctx, p, log)
		if err != nil {
			return nil, err
		}
		inst = s
	default:
		return nil, fmt.Errorf("unsupported instrument %s", p.Kind)
	}

	vals, err := p.Values(inst.Params())
	if err != nil {
		return nil, err
	}
	inst.SetParamValues(vals)
	return inst, nil
}

func buildSampled(cctx context.Context, ctx *offline.Context, p *preset.Patch, log *slog.Logger) (sampled, error) {
	loader := samples.NewLoader(int(ctx.SampleRate()), samples.WithLogger(log))
	data, err := loader.Read(cctx, p.RegionsPath)
	if err != nil {
		return nil, fmt.Errorf("read regions: %w", err)
	}
	regions, warnings, err := sfz.Parse(data, p.RegionsPath)
	if err != nil {
		return nil, fmt.Errorf("parse regions %s: %w", p.RegionsPath, err)
	}
	for _, w := range warnings {
		log.Warn("ignored opcode", "err", w)
	}

	cfg := sfz.SamplerConfig{MaxPolyphony: p.Polyphony, Logger: log, Loader: loader}
	var s sampled
	if p.Kind == synth.KindDrumKit {
		s, err = sfz.NewDrumKit(ctx, regions, cfg)
	} else {
		s, err = sfz.NewSampler(ctx, regions, cfg)
	}
	if err != nil {
		return nil, err
	}
	if err := s.LoadSamples(cctx); err != nil {
		// Regions without a buffer are skipped at note-on.
		log.Warn("some samples failed to load", "err", err)
	}
	return s, nil
}

// verbImpulse returns the stereo impulse for the verb send, read from path or
// generated when path is empty.
func verbImpulse(path string, sampleRate int, seed int64) ([]float32, []float32, error) {
	if path == "" {
		cfg := irsynth.DefaultRoomConfig()
		cfg.SampleRate = sampleRate
		cfg.Seed = seed
		return irsynth.GenerateRoom(cfg)
	}
	channels, rate, err := wavio.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	for i, ch := range channels {
		if channels[i], err = wavio.Resample(ch, rate, sampleRate); err != nil {
			return nil, nil, fmt.Errorf("resample %s: %w", path, err)
		}
	}
	if len(channels) == 1 {
		return channels[0], channels[0], nil
	}
	return channels[0], channels[1], nil
}
