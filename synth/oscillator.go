package synth

import (
	"github.com/cwbudde/algo-polysynth/dsp"
	"github.com/cwbudde/algo-polysynth/graph"
)

// Output chain stage order of an OscillatorVoice.
const (
	StageLFO1Level = iota
	StageLFO2Level
	StagePan
)

// OscillatorVoice is one modulatable oscillator gated by its own envelope.
// Pitch is summed in the MIDI note domain and converted to Hz in the graph,
// so FM sources connected to InputNode add directly in Hz.
type OscillatorVoice struct {
	g graph.Graph

	osc       graph.Oscillator
	noteSum   graph.Gain
	baseNote  graph.Constant
	transpose graph.Constant
	detune    graph.Constant
	toFreq    graph.Node
	amp       graph.Gain
	env       *Envelope
	chain     *OutputChain

	level *ModulationLink

	EnvToPitch  *ModulationLink
	LFO1ToPitch *ModulationLink
	LFO2ToPitch *ModulationLink
	EnvToPWM    *ModulationLink
	LFO1ToPWM   *ModulationLink
	LFO2ToPWM   *ModulationLink
	LFO1ToLevel *ModulationLink
	LFO2ToLevel *ModulationLink
	LFO1ToPan   *ModulationLink
	LFO2ToPan   *ModulationLink

	waveform  graph.Waveform
	gain      float64
	velScale  float64
	keyScale  float64
	pan       float64
	note      int
	velocity  int
	held      bool
	released  bool
	noteOffAt float64
	noteOnAt  float64
}

// NewOscillatorVoice builds the oscillator graph. lfo1 and lfo2 are shared
// modulation sources and may be nil.
func NewOscillatorVoice(g graph.Graph, lfo1 graph.Node, lfo2 graph.Node, env EnvelopeSpec) (*OscillatorVoice, error) {
	e, err := NewEnvelope(g, env)
	if err != nil {
		return nil, err
	}
	v := &OscillatorVoice{
		g:         g,
		env:       e,
		osc:       g.NewOscillator(graph.WaveSine, 0),
		noteSum:   g.NewGain(1),
		baseNote:  g.NewConstant(0),
		transpose: g.NewConstant(0),
		detune:    g.NewConstant(0),
		toFreq:    g.NewNoteToFrequency(),
		amp:       g.NewGain(0),
		gain:      1,
		note:      -1,
	}

	g.Connect(v.baseNote, v.noteSum)
	g.Connect(v.transpose, v.noteSum)
	g.Connect(v.detune, v.noteSum)
	g.Connect(v.noteSum, v.toFreq)
	g.Connect(v.toFreq, v.osc.Frequency())
	g.Connect(v.osc, v.amp)

	v.level = NewModulationLink(g, 1)
	v.level.ConnectFrom(e.Output())
	v.level.Connect(v.amp.Gain())

	link := func(src graph.Node, dst graph.Input) *ModulationLink {
		l := NewModulationLink(g, 0)
		if src != nil {
			l.ConnectFrom(src)
		}
		if dst != nil {
			l.Connect(dst)
		}
		return l
	}
	v.EnvToPitch = link(e.Output(), v.noteSum)
	v.LFO1ToPitch = link(lfo1, v.noteSum)
	v.LFO2ToPitch = link(lfo2, v.noteSum)
	v.EnvToPWM = link(e.Output(), nil)
	v.LFO1ToPWM = link(lfo1, nil)
	v.LFO2ToPWM = link(lfo2, nil)
	v.LFO1ToLevel = link(lfo1, nil)
	v.LFO2ToLevel = link(lfo2, nil)
	v.LFO1ToPan = link(lfo1, nil)
	v.LFO2ToPan = link(lfo2, nil)

	v.chain = NewOutputChain(g, v.amp)
	gainStage := func() (graph.Node, graph.Param) {
		n := g.NewGain(1)
		return n, n.Gain()
	}
	v.chain.AddStage(gainStage, nil, v.LFO1ToLevel)
	v.chain.AddStage(gainStage, nil, v.LFO2ToLevel)
	v.chain.AddStage(func() (graph.Node, graph.Param) {
		n := g.NewPanner(v.pan)
		return n, n.Pan()
	}, func() bool { return v.pan != 0 }, v.LFO1ToPan, v.LFO2ToPan)
	return v, nil
}

// InputNode is the frequency param; FM modulators connect here.
func (v *OscillatorVoice) InputNode() graph.Param { return v.osc.Frequency() }

// PitchInput accepts note-domain offsets such as a shared pitch-bend signal.
func (v *OscillatorVoice) PitchInput() graph.Input { return v.noteSum }

// Connect routes the post level/pan output to dst.
func (v *OscillatorVoice) Connect(dst graph.Input) { v.chain.Connect(dst) }

// Disconnect removes dst, or all destinations when dst is nil.
func (v *OscillatorVoice) Disconnect(dst graph.Input) { v.chain.Disconnect(dst) }

// Envelope is the level envelope.
func (v *OscillatorVoice) Envelope() *Envelope { return v.env }

// Chain exposes the output chain for inspection.
func (v *OscillatorVoice) Chain() *OutputChain { return v.chain }

func (v *OscillatorVoice) Waveform() graph.Waveform { return v.waveform }

// SetWaveform switches the oscillator shape. PWM modulation is only wired
// while the shape is pwm.
func (v *OscillatorVoice) SetWaveform(w graph.Waveform) {
	if w == v.waveform {
		return
	}
	wasPWM := v.waveform == graph.WavePWM
	v.waveform = w
	v.osc.SetWaveform(w)
	width := v.osc.Width()
	pwm := []*ModulationLink{v.EnvToPWM, v.LFO1ToPWM, v.LFO2ToPWM}
	switch {
	case w == graph.WavePWM && !wasPWM:
		for _, l := range pwm {
			l.Connect(width)
		}
	case w != graph.WavePWM && wasPWM:
		for _, l := range pwm {
			l.Disconnect(width)
		}
	}
}

// SetWidth sets the static pulse width (-1..1) used by the pwm shape.
func (v *OscillatorVoice) SetWidth(w float64) {
	v.osc.Width().SetValue(dsp.Clamp(w, -1, 1))
}

// SetTranspose sets a static pitch offset in semitones.
func (v *OscillatorVoice) SetTranspose(semitones float64) {
	v.transpose.Offset().SetValue(semitones)
}

// SetDetune sets a static pitch offset in cents.
func (v *OscillatorVoice) SetDetune(cents float64) {
	v.detune.Offset().SetValue(cents / 100)
}

// SetLevel sets the output level before velocity and key scaling.
func (v *OscillatorVoice) SetLevel(level float64) {
	v.gain = level
	v.updateLevel()
}

// SetVelocityScale sets how strongly velocity changes the level (0 = none).
func (v *OscillatorVoice) SetVelocityScale(amount float64) {
	v.velScale = amount
	v.updateLevel()
}

// SetKeyScale sets how strongly the played key changes the level (0 = none).
func (v *OscillatorVoice) SetKeyScale(amount float64) {
	v.keyScale = amount
	v.updateLevel()
}

// SetPan sets the static pan (-1..1). A non-zero pan keeps the pan stage live.
func (v *OscillatorVoice) SetPan(pan float64) {
	v.pan = dsp.Clamp(pan, -1, 1)
	if p, ok := v.chain.Stage(StagePan).(graph.Panner); ok {
		p.Pan().SetValue(v.pan)
	}
	v.chain.Refresh()
}

// SetEnvelope merges a partial envelope shape.
func (v *OscillatorVoice) SetEnvelope(spec EnvelopeSpec) { v.env.Update(spec) }

func (v *OscillatorVoice) updateLevel() {
	v.level.SetGain(v.gain * VelocityScale(v.velocity, v.velScale) * KeyScale(v.note, v.keyScale))
}

// VelocityScale is the level factor for velocity at scaling amount.
func VelocityScale(velocity int, amount float64) float64 {
	if velocity < 0 {
		return 1
	}
	return 1 - dsp.Remap(float64(velocity), 0, 128, amount, -amount)
}

// KeyScale is the level factor for a MIDI note at scaling amount, centred on
// note 60 and saturating 48 semitones either side.
func KeyScale(note int, amount float64) float64 {
	if note < 0 {
		return 1
	}
	n := dsp.Clamp(float64(note), 12, 108)
	return max(0, 1-dsp.Remap(n, 12, 108, amount, -amount))
}

// Trigger starts a note at when.
func (v *OscillatorVoice) Trigger(note int, velocity int, when float64) {
	v.note = note
	v.velocity = velocity
	v.updateLevel()
	v.baseNote.Offset().SetValueAtTime(float64(note), when)
	v.env.Trigger(when)
	v.held = true
	v.released = false
	v.noteOnAt = when
}

// Release starts the musical release. Releasing a voice that is not held is a
// no-op.
func (v *OscillatorVoice) Release(when float64) {
	if !v.held {
		return
	}
	v.env.Release(when)
	v.held = false
	v.released = true
	v.noteOffAt = when
}

// ForceStop silences the voice immediately.
func (v *OscillatorVoice) ForceStop(when float64) {
	v.env.Reset()
	v.held = false
	v.released = false
	v.noteOffAt = when
}

// IsPlaying reports whether the note is held or still in its release tail.
func (v *OscillatorVoice) IsPlaying(now float64) bool {
	if v.held {
		return true
	}
	return v.released && now-v.noteOffAt < v.env.ReleaseTime()
}

func (v *OscillatorVoice) Note() int { return v.note }

func (v *OscillatorVoice) Timestamp() float64 { return v.noteOnAt }
