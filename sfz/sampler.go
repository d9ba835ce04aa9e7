package sfz

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/cwbudde/algo-polysynth/graph"
	"github.com/cwbudde/algo-polysynth/synth"
)

// Loader fetches and decodes a sample. Load returns immediately and calls
// exactly one of the callbacks, possibly from another goroutine.
type Loader interface {
	Load(ctx context.Context, url string, onSuccess func(*graph.Buffer), onError func(error))
}

// SamplerConfig configures a Sampler or DrumKit.
type SamplerConfig struct {
	MaxPolyphony int
	Logger       *slog.Logger
	Loader       Loader
}

// DefaultSamplerConfig returns a 32-voice configuration without a loader.
func DefaultSamplerConfig() SamplerConfig {
	return SamplerConfig{MaxPolyphony: 32}
}

// Validate checks the configuration.
func (c SamplerConfig) Validate() error {
	if c.MaxPolyphony <= 0 {
		return fmt.Errorf("max polyphony must be > 0")
	}
	return nil
}

// ParamTranspose shifts every region in semitones.
const ParamTranspose = "transpose"

// SamplerParams declares the parameter table shared by Sampler and DrumKit.
func SamplerParams() []synth.ParamSpec {
	return append([]synth.ParamSpec{
		{ID: ParamTranspose, Default: 0, Min: -24, Max: 24},
	}, synth.MasterParams()...)
}

// Sampler plays SFZ regions polyphonically.
type Sampler struct {
	kind    synth.Kind
	g       graph.Graph
	log     *slog.Logger
	loader  Loader
	params  *synth.ParamTable
	master  *synth.Master
	regions []*Region
	pool    *synth.Pool[*SampleVoice]
}

var _ synth.Instrument = (*Sampler)(nil)

// NewSampler builds a sampler over regions. Samples are not fetched until
// LoadSamples.
func NewSampler(g graph.Graph, regions []*Region, cfg SamplerConfig) (*Sampler, error) {
	return newSampler(g, regions, cfg, synth.KindSampler)
}

func newSampler(g graph.Graph, regions []*Region, cfg SamplerConfig, kind synth.Kind) (*Sampler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(regions) == 0 {
		return nil, ErrNoRegions
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Sampler{
		kind:    kind,
		g:       g,
		log:     logger.With("instrument", kind.String()),
		loader:  cfg.Loader,
		params:  synth.NewParamTable(SamplerParams()),
		master:  synth.NewMaster(g),
		regions: regions,
	}
	voices := make([]*SampleVoice, cfg.MaxPolyphony)
	for i := range voices {
		v, err := NewSampleVoice(g)
		if err != nil {
			return nil, fmt.Errorf("voice %d: %w", i, err)
		}
		v.OnChoke = s.ForceNoteOff
		v.Connect(s.master.Input())
		voices[i] = v
	}
	s.pool = synth.NewPool(voices, g.Now)
	s.master.ApplyAll(s.params)
	return s, nil
}

func (s *Sampler) Kind() synth.Kind { return s.kind }

func (s *Sampler) Params() *synth.ParamTable { return s.params }

// Regions returns the regions in declaration order.
func (s *Sampler) Regions() []*Region { return s.regions }

// Voices exposes the voice pool.
func (s *Sampler) Voices() []*SampleVoice { return s.pool.Voices() }

// LoadSamples fetches every region sample that is not loaded yet and waits for
// the results. Failed regions stay silent; the joined load errors are
// returned.
func (s *Sampler) LoadSamples(ctx context.Context) error {
	if s.loader == nil {
		return fmt.Errorf("sfz: no sample loader configured")
	}
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, r := range s.regions {
		if r.Sample == "" || r.Buffer() != nil {
			continue
		}
		wg.Add(1)
		s.loader.Load(ctx, r.Sample, func(b *graph.Buffer) {
			r.SetBuffer(b)
			wg.Done()
		}, func(err error) {
			r.markFailed()
			s.log.Warn("sample load failed", "sample", r.Sample, "err", err)
			mu.Lock()
			errs = append(errs, fmt.Errorf("%s: %w", r.Sample, err))
			mu.Unlock()
			wg.Done()
		})
	}
	wg.Wait()
	return errors.Join(errs...)
}

// Reload retries the regions whose sample failed to load.
func (s *Sampler) Reload(ctx context.Context) error {
	failed := 0
	for _, r := range s.regions {
		if r.Failed() {
			failed++
		}
	}
	s.log.Info("reloading samples", "failed", failed)
	return s.LoadSamples(ctx)
}

// Region returns the region NoteOn would play, or nil.
func (s *Sampler) Region(note int, velocity int) *Region {
	return Find(s.regions, note, velocity)
}

func (s *Sampler) NoteOn(note int, velocity int) {
	if note < 0 || note > 127 {
		s.log.Debug("note out of range", "note", note)
		return
	}
	r := Find(s.regions, note, velocity)
	if r == nil || r.Buffer() == nil {
		s.log.Debug("no playable region", "note", note, "velocity", velocity)
		return
	}
	s.pool.NoteOnFunc(note, velocity, func(v *SampleVoice) { v.Assign(r) })
}

func (s *Sampler) NoteOff(note int) { s.pool.NoteOff(note) }

func (s *Sampler) PedalDown() { s.pool.PedalDown() }

func (s *Sampler) PedalUp() { s.pool.PedalUp() }

// ForceNoteOff hard-stops every voice on note. Regions listing note in
// sendNoteOffToNotes call it when they trigger.
func (s *Sampler) ForceNoteOff(note int) { s.pool.ForceNoteOff(note) }

func (s *Sampler) AllNotesOff() { s.pool.AllNotesOff() }

func (s *Sampler) Panic() { s.pool.Panic() }

func (s *Sampler) Connect(out graph.Input, verb graph.Input) { s.master.Connect(out, verb) }

func (s *Sampler) Disconnect() { s.master.Disconnect() }

// SetParamValues validates and applies a patch. Unknown IDs and invalid values
// are logged and skipped.
func (s *Sampler) SetParamValues(patch map[string]float64) {
	for _, id := range slices.Sorted(maps.Keys(patch)) {
		v, err := s.params.Set(id, patch[id])
		if err != nil {
			if errors.Is(err, synth.ErrUnknownParam) {
				s.log.Warn("unknown parameter", "param", id)
			} else {
				s.log.Warn("invalid parameter value", "param", id, "value", patch[id], "err", err)
			}
			continue
		}
		if s.master.Apply(id, v) {
			continue
		}
		if id == ParamTranspose {
			for _, voice := range s.pool.Voices() {
				voice.Transpose = v
			}
		}
	}
}
