package synth

import (
	"github.com/cwbudde/algo-polysynth/graph"
)

// FMOscillators is the number of oscillators in an FM voice.
const FMOscillators = 4

type fmEdge struct {
	link FMLink
	gain graph.Gain
}

// FMVoice combines four oscillator voices wired by an FM algorithm, followed
// by a filter modulated by the voice envelope and the shared LFOs.
type FMVoice struct {
	g graph.Graph

	Osc    [FMOscillators]*OscillatorVoice
	env1   *Envelope
	sum    graph.Gain
	filter graph.Filter

	EnvToCutoff  *ModulationLink
	LFO1ToCutoff *ModulationLink
	LFO2ToCutoff *ModulationLink
	EnvToQ       *ModulationLink
	LFO1ToQ      *ModulationLink
	LFO2ToQ      *ModulationLink

	algorithm int
	enabled   int
	edges     []fmEdge
	outputs   []int
	note      int
	noteOnAt  float64
}

// NewFMVoice builds a voice with algorithm 0 and all oscillators enabled.
// oscEnv shapes each oscillator's level; env1 is the voice envelope.
func NewFMVoice(g graph.Graph, lfo1 graph.Node, lfo2 graph.Node, oscEnv EnvelopeSpec, env1 EnvelopeSpec) (*FMVoice, error) {
	e, err := NewEnvelope(g, env1)
	if err != nil {
		return nil, err
	}
	v := &FMVoice{
		g:       g,
		env1:    e,
		sum:     g.NewGain(1),
		filter:  g.NewFilter(graph.FilterOff, 20000, 0.7071),
		enabled: FMOscillators,
		note:    -1,
	}
	for i := range v.Osc {
		o, err := NewOscillatorVoice(g, lfo1, lfo2, oscEnv)
		if err != nil {
			return nil, err
		}
		v.Osc[i] = o
	}
	g.Connect(v.sum, v.filter)

	link := func(src graph.Node, dst graph.Param) *ModulationLink {
		l := NewModulationLink(g, 0)
		if src != nil {
			l.ConnectFrom(src)
		}
		l.Connect(dst)
		return l
	}
	v.EnvToCutoff = link(e.Output(), v.filter.Frequency())
	v.LFO1ToCutoff = link(lfo1, v.filter.Frequency())
	v.LFO2ToCutoff = link(lfo2, v.filter.Frequency())
	v.EnvToQ = link(e.Output(), v.filter.Q())
	v.LFO1ToQ = link(lfo1, v.filter.Q())
	v.LFO2ToQ = link(lfo2, v.filter.Q())

	v.rewire()
	return v, nil
}

// Connect routes the filtered voice output to dst.
func (v *FMVoice) Connect(dst graph.Input) { v.g.Connect(v.filter, dst) }

// Disconnect removes the route to dst.
func (v *FMVoice) Disconnect(dst graph.Input) { v.g.Disconnect(v.filter, dst) }

// Sum is the junction where output oscillators are summed before the filter.
func (v *FMVoice) Sum() graph.Node { return v.sum }

// Envelope is the voice envelope driving filter modulation.
func (v *FMVoice) Envelope() *Envelope { return v.env1 }

func (v *FMVoice) Algorithm() int { return v.algorithm }

// SetAlgorithm selects an entry of the algorithm table. Out-of-range indices
// are rejected and the current wiring is kept.
func (v *FMVoice) SetAlgorithm(i int) bool {
	if i < 0 || i >= len(Algorithms) {
		return false
	}
	if i != v.algorithm {
		v.algorithm = i
		v.rewire()
	}
	return true
}

// Enabled is the number of active oscillators.
func (v *FMVoice) Enabled() int { return v.enabled }

// SetVoicing enables the first n oscillators (1..4). Disabled oscillators
// take no part in the wiring.
func (v *FMVoice) SetVoicing(n int) bool {
	if n < 1 || n > FMOscillators {
		return false
	}
	if n != v.enabled {
		v.enabled = n
		v.rewire()
	}
	return true
}

// FMLinks lists the FM links currently wired.
func (v *FMVoice) FMLinks() []FMLink {
	out := make([]FMLink, len(v.edges))
	for i, e := range v.edges {
		out[i] = e.link
	}
	return out
}

// Outputs lists the oscillators currently summed to the output.
func (v *FMVoice) Outputs() []int { return append([]int(nil), v.outputs...) }

func (v *FMVoice) rewire() {
	for _, e := range v.edges {
		v.Osc[e.link.Modulator].Disconnect(e.gain)
		v.g.Release(e.gain)
	}
	v.edges = v.edges[:0]
	for _, i := range v.outputs {
		v.Osc[i].Disconnect(v.sum)
	}
	v.outputs = v.outputs[:0]

	alg := Algorithms[v.algorithm]
	for _, l := range alg.Links {
		if l.Modulator >= v.enabled || l.Carrier >= v.enabled {
			continue
		}
		gain := v.g.NewGain(FMModulationIndex)
		v.Osc[l.Modulator].Connect(gain)
		v.g.Connect(gain, v.Osc[l.Carrier].InputNode())
		v.edges = append(v.edges, fmEdge{link: l, gain: gain})
	}
	for _, i := range alg.Outputs {
		if i >= v.enabled {
			continue
		}
		v.Osc[i].Connect(v.sum)
		v.outputs = append(v.outputs, i)
	}
}

// SetFilterType changes the filter response.
func (v *FMVoice) SetFilterType(t graph.FilterType) { v.filter.SetType(t) }

// SetCutoff sets the static cutoff in Hz.
func (v *FMVoice) SetCutoff(hz float64) { v.filter.Frequency().SetValue(hz) }

// SetQ sets the static resonance.
func (v *FMVoice) SetQ(q float64) { v.filter.Q().SetValue(q) }

// Trigger starts a note on every enabled oscillator and the voice envelope.
func (v *FMVoice) Trigger(note int, velocity int, when float64) {
	for i := 0; i < v.enabled; i++ {
		v.Osc[i].Trigger(note, velocity, when)
	}
	v.env1.Trigger(when)
	v.note = note
	v.noteOnAt = when
}

// Release starts the musical release of all oscillators.
func (v *FMVoice) Release(when float64) {
	for _, o := range v.Osc {
		o.Release(when)
	}
	v.env1.Release(when)
}

// ForceStop silences the voice immediately.
func (v *FMVoice) ForceStop(when float64) {
	for _, o := range v.Osc {
		o.ForceStop(when)
	}
	v.env1.Reset()
}

// IsPlaying reports whether any enabled oscillator is sounding.
func (v *FMVoice) IsPlaying(now float64) bool {
	for i := 0; i < v.enabled; i++ {
		if v.Osc[i].IsPlaying(now) {
			return true
		}
	}
	return false
}

func (v *FMVoice) Note() int { return v.note }

func (v *FMVoice) Timestamp() float64 { return v.noteOnAt }
