package synth

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"

	"github.com/cwbudde/algo-polysynth/graph"
)

// FMConfig configures an FMSynth.
type FMConfig struct {
	MaxPolyphony int
	Logger       *slog.Logger
}

// DefaultFMConfig returns an eight-voice configuration.
func DefaultFMConfig() FMConfig {
	return FMConfig{MaxPolyphony: 8}
}

// Validate checks the configuration.
func (c FMConfig) Validate() error {
	if c.MaxPolyphony <= 0 {
		return fmt.Errorf("max polyphony must be > 0")
	}
	return nil
}

var voicingNames = []string{"1 osc", "2 osc", "3 osc", "4 osc"}

// FMParams declares the parameter table of an FMSynth.
func FMParams() []ParamSpec {
	specs := []ParamSpec{
		{ID: "algorithm", Default: 0, EnumNames: AlgorithmNames()},
		{ID: "voicing", Default: 3, EnumNames: voicingNames},
		{ID: "pitch_bend", Default: 0, Min: -12, Max: 12},
		{ID: "lfo1_rate", Default: 5, Min: 0.01, Max: 50},
		{ID: "lfo1_waveform", Default: 0, EnumNames: waveformNames()},
		{ID: "lfo2_rate", Default: 0.5, Min: 0.01, Max: 50},
		{ID: "lfo2_waveform", Default: 3, EnumNames: waveformNames()},
		{ID: "filter_type", Default: 0, EnumNames: filterTypeNames()},
		{ID: "filter_cutoff", Default: 20000, Min: 20, Max: 20000},
		{ID: "filter_q", Default: 0.7071, Min: 0.1, Max: 30},
		{ID: "env1_attack", Default: 0.01, Min: 0, Max: 10},
		{ID: "env1_hold", Default: 0, Min: 0, Max: 10},
		{ID: "env1_decay", Default: 0.3, Min: 0, Max: 10},
		{ID: "env1_sustain", Default: 0.5, Min: 0, Max: 1},
		{ID: "env1_release", Default: 0.3, Min: 0, Max: 10},
		{ID: "env1_cutoff", Default: 0, Min: -20000, Max: 20000},
		{ID: "lfo1_cutoff", Default: 0, Min: -20000, Max: 20000},
		{ID: "lfo2_cutoff", Default: 0, Min: -20000, Max: 20000},
		{ID: "env1_q", Default: 0, Min: -30, Max: 30},
		{ID: "lfo1_q", Default: 0, Min: -30, Max: 30},
		{ID: "lfo2_q", Default: 0, Min: -30, Max: 30},
	}
	for n := 1; n <= FMOscillators; n++ {
		level := 0.0
		if n == 1 {
			level = 1
		}
		p := fmt.Sprintf("osc%d_", n)
		specs = append(specs,
			ParamSpec{ID: p + "waveform", Default: 0, EnumNames: waveformNames()},
			ParamSpec{ID: p + "transpose", Default: 0, Min: -48, Max: 48},
			ParamSpec{ID: p + "detune", Default: 0, Min: -100, Max: 100},
			ParamSpec{ID: p + "level", Default: level, Min: 0, Max: 1},
			ParamSpec{ID: p + "velocity_scale", Default: 0, Min: 0, Max: 1},
			ParamSpec{ID: p + "key_scale", Default: 0, Min: -1, Max: 1},
			ParamSpec{ID: p + "pan", Default: 0, Min: -1, Max: 1},
			ParamSpec{ID: p + "width", Default: 0, Min: -1, Max: 1},
			ParamSpec{ID: p + "attack", Default: 0.005, Min: 0, Max: 10},
			ParamSpec{ID: p + "hold", Default: 0, Min: 0, Max: 10},
			ParamSpec{ID: p + "decay", Default: 0.2, Min: 0, Max: 10},
			ParamSpec{ID: p + "sustain", Default: 0.7, Min: 0, Max: 1},
			ParamSpec{ID: p + "release", Default: 0.25, Min: 0, Max: 10},
			ParamSpec{ID: p + "release_curve", Default: 0, Min: 0, Max: 20},
			ParamSpec{ID: p + "env_pitch", Default: 0, Min: -48, Max: 48},
			ParamSpec{ID: p + "lfo1_pitch", Default: 0, Min: -48, Max: 48},
			ParamSpec{ID: p + "lfo2_pitch", Default: 0, Min: -48, Max: 48},
			ParamSpec{ID: p + "env_pwm", Default: 0, Min: -1, Max: 1},
			ParamSpec{ID: p + "lfo1_pwm", Default: 0, Min: -1, Max: 1},
			ParamSpec{ID: p + "lfo2_pwm", Default: 0, Min: -1, Max: 1},
			ParamSpec{ID: p + "lfo1_level", Default: 0, Min: -1, Max: 1},
			ParamSpec{ID: p + "lfo2_level", Default: 0, Min: -1, Max: 1},
			ParamSpec{ID: p + "lfo1_pan", Default: 0, Min: -1, Max: 1},
			ParamSpec{ID: p + "lfo2_pan", Default: 0, Min: -1, Max: 1},
		)
	}
	return append(specs, MasterParams()...)
}

// FMSynth is a polyphonic four-oscillator FM instrument.
type FMSynth struct {
	g      graph.Graph
	log    *slog.Logger
	params *ParamTable
	lfo1   graph.Oscillator
	lfo2   graph.Oscillator
	bend   graph.Constant
	master *Master
	pool   *Pool[*FMVoice]
}

var _ Instrument = (*FMSynth)(nil)

// NewFMSynth builds the voice pool and applies the default parameters.
func NewFMSynth(g graph.Graph, cfg FMConfig) (*FMSynth, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &FMSynth{
		g:      g,
		log:    logger.With("instrument", KindFM.String()),
		params: NewParamTable(FMParams()),
		lfo1:   g.NewOscillator(graph.WaveSine, 5),
		lfo2:   g.NewOscillator(graph.WaveSine, 0.5),
		bend:   g.NewConstant(0),
		master: NewMaster(g),
	}

	envSpec := EnvelopeSpec{Sustain: Float(1)}
	voices := make([]*FMVoice, cfg.MaxPolyphony)
	for i := range voices {
		v, err := NewFMVoice(g, s.lfo1, s.lfo2, envSpec, envSpec)
		if err != nil {
			return nil, fmt.Errorf("voice %d: %w", i, err)
		}
		for _, o := range v.Osc {
			g.Connect(s.bend, o.PitchInput())
		}
		v.Connect(s.master.Input())
		voices[i] = v
	}
	s.pool = NewPool(voices, g.Now)

	for _, id := range s.params.IDs() {
		s.apply(id, s.params.Value(id))
	}
	return s, nil
}

func (s *FMSynth) Kind() Kind { return KindFM }

func (s *FMSynth) Params() *ParamTable { return s.params }

// Voices exposes the voice pool.
func (s *FMSynth) Voices() []*FMVoice { return s.pool.Voices() }

func (s *FMSynth) NoteOn(note int, velocity int) {
	if note < 0 || note > 127 {
		s.log.Debug("note out of range", "note", note)
		return
	}
	s.pool.NoteOn(note, velocity)
}

func (s *FMSynth) NoteOff(note int) { s.pool.NoteOff(note) }

func (s *FMSynth) PedalDown() { s.pool.PedalDown() }

func (s *FMSynth) PedalUp() { s.pool.PedalUp() }

func (s *FMSynth) AllNotesOff() { s.pool.AllNotesOff() }

func (s *FMSynth) Panic() { s.pool.Panic() }

func (s *FMSynth) Connect(out graph.Input, verb graph.Input) { s.master.Connect(out, verb) }

func (s *FMSynth) Disconnect() { s.master.Disconnect() }

// SetParamValues validates and applies a patch. Unknown IDs and invalid
// choices are logged and skipped.
func (s *FMSynth) SetParamValues(patch map[string]float64) {
	for _, id := range slices.Sorted(maps.Keys(patch)) {
		v, err := s.params.Set(id, patch[id])
		if err != nil {
			logParamError(s.log, id, patch[id], err)
			continue
		}
		s.apply(id, v)
	}
}

func logParamError(log *slog.Logger, id string, v float64, err error) {
	switch {
	case errors.Is(err, ErrUnknownParam):
		log.Warn("unknown parameter", "param", id)
	case id == "algorithm":
		log.Warn("unknown fm algorithm", "index", v)
	default:
		log.Warn("invalid parameter value", "param", id, "value", v, "err", err)
	}
}

func (s *FMSynth) apply(id string, v float64) {
	if s.master.Apply(id, v) {
		return
	}
	voices := s.pool.Voices()
	switch id {
	case "algorithm":
		for _, voice := range voices {
			voice.SetAlgorithm(int(v))
		}
	case "voicing":
		for _, voice := range voices {
			voice.SetVoicing(int(v) + 1)
		}
	case "pitch_bend":
		s.bend.Offset().SetValue(v)
	case "lfo1_rate":
		s.lfo1.Frequency().SetValue(v)
	case "lfo2_rate":
		s.lfo2.Frequency().SetValue(v)
	case "lfo1_waveform":
		s.lfo1.SetWaveform(graph.Waveform(int(v)))
	case "lfo2_waveform":
		s.lfo2.SetWaveform(graph.Waveform(int(v)))
	case "filter_type":
		for _, voice := range voices {
			voice.SetFilterType(graph.FilterType(int(v)))
		}
	case "filter_cutoff":
		for _, voice := range voices {
			voice.SetCutoff(v)
		}
	case "filter_q":
		for _, voice := range voices {
			voice.SetQ(v)
		}
	case "env1_cutoff", "lfo1_cutoff", "lfo2_cutoff", "env1_q", "lfo1_q", "lfo2_q":
		for _, voice := range voices {
			voiceLink(voice, id).SetGain(v)
		}
	default:
		if field, ok := strings.CutPrefix(id, "env1_"); ok {
			if spec, ok := envelopeField(field, v); ok {
				for _, voice := range voices {
					voice.Envelope().Update(spec)
				}
				return
			}
		}
		if n, field, ok := oscParam(id); ok {
			for _, voice := range voices {
				applyOscParam(voice.Osc[n], field, v)
			}
			return
		}
		s.log.Warn("unhandled parameter", "param", id)
	}
}

func voiceLink(v *FMVoice, id string) *ModulationLink {
	switch id {
	case "env1_cutoff":
		return v.EnvToCutoff
	case "lfo1_cutoff":
		return v.LFO1ToCutoff
	case "lfo2_cutoff":
		return v.LFO2ToCutoff
	case "env1_q":
		return v.EnvToQ
	case "lfo1_q":
		return v.LFO1ToQ
	}
	return v.LFO2ToQ
}

// oscParam splits "osc3_level" into oscillator index 2 and "level".
func oscParam(id string) (int, string, bool) {
	if len(id) < 6 || !strings.HasPrefix(id, "osc") || id[4] != '_' {
		return 0, "", false
	}
	n := int(id[3] - '1')
	if n < 0 || n >= FMOscillators {
		return 0, "", false
	}
	return n, id[5:], true
}

func envelopeField(field string, v float64) (EnvelopeSpec, bool) {
	switch field {
	case "attack":
		return EnvelopeSpec{Attack: Float(v)}, true
	case "hold":
		return EnvelopeSpec{Hold: Float(v)}, true
	case "decay":
		return EnvelopeSpec{Decay: Float(v)}, true
	case "sustain":
		return EnvelopeSpec{Sustain: Float(v)}, true
	case "release":
		return EnvelopeSpec{Release: Float(v)}, true
	case "release_curve":
		return EnvelopeSpec{ReleaseCurve: Float(v)}, true
	}
	return EnvelopeSpec{}, false
}

func applyOscParam(o *OscillatorVoice, field string, v float64) {
	if spec, ok := envelopeField(field, v); ok {
		o.SetEnvelope(spec)
		return
	}
	switch field {
	case "waveform":
		o.SetWaveform(graph.Waveform(int(v)))
	case "transpose":
		o.SetTranspose(v)
	case "detune":
		o.SetDetune(v)
	case "level":
		o.SetLevel(v)
	case "velocity_scale":
		o.SetVelocityScale(v)
	case "key_scale":
		o.SetKeyScale(v)
	case "pan":
		o.SetPan(v)
	case "width":
		o.SetWidth(v)
	case "env_pitch":
		o.EnvToPitch.SetGain(v)
	case "lfo1_pitch":
		o.LFO1ToPitch.SetGain(v)
	case "lfo2_pitch":
		o.LFO2ToPitch.SetGain(v)
	case "env_pwm":
		o.EnvToPWM.SetGain(v)
	case "lfo1_pwm":
		o.LFO1ToPWM.SetGain(v)
	case "lfo2_pwm":
		o.LFO2ToPWM.SetGain(v)
	case "lfo1_level":
		o.LFO1ToLevel.SetGain(v)
	case "lfo2_level":
		o.LFO2ToLevel.SetGain(v)
	case "lfo1_pan":
		o.LFO1ToPan.SetGain(v)
	case "lfo2_pan":
		o.LFO2ToPan.SetGain(v)
	}
}
