package synth

import (
	"github.com/cwbudde/algo-polysynth/graph"
)

// Kind identifies the instrument variant.
type Kind int

const (
	KindFM Kind = iota
	KindSampler
	KindDrumKit
)

func (k Kind) String() string {
	switch k {
	case KindFM:
		return "fm"
	case KindSampler:
		return "sampler"
	case KindDrumKit:
		return "drumkit"
	}
	return "unknown"
}

// ParseKind maps an instrument name to its Kind.
func ParseKind(name string) (Kind, bool) {
	for k := KindFM; k <= KindDrumKit; k++ {
		if k.String() == name {
			return k, true
		}
	}
	return KindFM, false
}

// Instrument is the control surface shared by every instrument variant. All
// calls are made from one control goroutine.
type Instrument interface {
	Kind() Kind
	NoteOn(note int, velocity int)
	NoteOff(note int)
	PedalDown()
	PedalUp()
	// SetParamValues applies a patch of parameter ID to value. Enum
	// parameters take a choice index.
	SetParamValues(patch map[string]float64)
	Params() *ParamTable
	// Connect routes the dry output to out and the verb send to verb. Either
	// may be nil.
	Connect(out graph.Input, verb graph.Input)
	Disconnect()
	AllNotesOff()
	Panic()
}

// Master parameter IDs handled once per instrument.
const (
	ParamGain             = "gain"
	ParamVerb             = "verb"
	ParamMasterFilterType = "master_filter_type"
	ParamMasterCutoff     = "master_cutoff"
	ParamMasterQ          = "master_q"
)

// MasterParams declares the instrument-level parameters of a Master stage.
func MasterParams() []ParamSpec {
	return []ParamSpec{
		{ID: ParamGain, Default: 0.8, Min: 0, Max: 4},
		{ID: ParamVerb, Default: 0, Min: 0, Max: 1},
		{ID: ParamMasterFilterType, Default: 0, EnumNames: filterTypeNames()},
		{ID: ParamMasterCutoff, Default: 20000, Min: 20, Max: 20000},
		{ID: ParamMasterQ, Default: 0.7071, Min: 0.1, Max: 30},
	}
}

func filterTypeNames() []string {
	names := make([]string, 0, 4)
	for t := graph.FilterOff; t <= graph.FilterBandpass; t++ {
		names = append(names, t.String())
	}
	return names
}

func waveformNames() []string {
	names := make([]string, 0, 5)
	for w := graph.WaveSine; w <= graph.WavePWM; w++ {
		names = append(names, w.String())
	}
	return names
}

// Master is the instrument output stage: voices sum into a shared filter and
// gain, then split into a dry output and a verb send.
type Master struct {
	g      graph.Graph
	input  graph.Gain
	filter graph.Filter
	gain   graph.Gain
	dry    graph.Gain
	wet    graph.Gain
	out    graph.Input
	verb   graph.Input
}

// NewMaster builds the stage with unity gain, no filter and no verb.
func NewMaster(g graph.Graph) *Master {
	m := &Master{
		g:      g,
		input:  g.NewGain(1),
		filter: g.NewFilter(graph.FilterOff, 20000, 0.7071),
		gain:   g.NewGain(1),
		dry:    g.NewGain(1),
		wet:    g.NewGain(0),
	}
	g.Connect(m.input, m.filter)
	g.Connect(m.filter, m.gain)
	g.Connect(m.gain, m.dry)
	g.Connect(m.gain, m.wet)
	return m
}

// Input is where voices connect.
func (m *Master) Input() graph.Input { return m.input }

// Connect routes the dry and verb outputs. Either may be nil.
func (m *Master) Connect(out graph.Input, verb graph.Input) {
	m.Disconnect()
	if out != nil {
		m.g.Connect(m.dry, out)
	}
	if verb != nil {
		m.g.Connect(m.wet, verb)
	}
	m.out, m.verb = out, verb
}

// Disconnect removes both outputs.
func (m *Master) Disconnect() {
	if m.out != nil {
		m.g.Disconnect(m.dry, m.out)
	}
	if m.verb != nil {
		m.g.Disconnect(m.wet, m.verb)
	}
	m.out, m.verb = nil, nil
}

// Apply handles a master parameter and reports whether id was one.
func (m *Master) Apply(id string, v float64) bool {
	switch id {
	case ParamGain:
		m.gain.Gain().SetValue(v)
	case ParamVerb:
		m.dry.Gain().SetValue(1 - v)
		m.wet.Gain().SetValue(v)
	case ParamMasterFilterType:
		m.filter.SetType(graph.FilterType(int(v)))
	case ParamMasterCutoff:
		m.filter.Frequency().SetValue(v)
	case ParamMasterQ:
		m.filter.Q().SetValue(v)
	default:
		return false
	}
	return true
}

// ApplyAll pushes the current master values of t.
func (m *Master) ApplyAll(t *ParamTable) {
	for _, s := range MasterParams() {
		m.Apply(s.ID, t.Value(s.ID))
	}
}
