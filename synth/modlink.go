package synth

import (
	"math"

	"github.com/cwbudde/algo-polysynth/graph"
)

// LinkMode is the wiring state of a ModulationLink.
type LinkMode int

const (
	// LinkZero installs no edges.
	LinkZero LinkMode = iota
	// LinkPassthrough connects every source directly to every destination.
	LinkPassthrough
	// LinkScaled routes every source through one scaling gain node.
	LinkScaled
)

func (m LinkMode) String() string {
	switch m {
	case LinkZero:
		return "zero"
	case LinkPassthrough:
		return "passthrough"
	case LinkScaled:
		return "scaled"
	}
	return "unknown"
}

const linkEpsilon = 1e-4

func modeForGain(g float64) LinkMode {
	switch {
	case math.Abs(g) < linkEpsilon:
		return LinkZero
	case math.Abs(g-1) < linkEpsilon:
		return LinkPassthrough
	}
	return LinkScaled
}

// ModulationLink connects modulation sources to destination params scaled by
// a gain, installing only the edges that gain requires.
type ModulationLink struct {
	g         graph.Graph
	gain      float64
	mode      LinkMode
	sources   []graph.Node
	dests     []graph.Input
	scaler    graph.Gain
	listeners []func(zero bool)
}

// NewModulationLink creates an unconnected link.
func NewModulationLink(g graph.Graph, gain float64) *ModulationLink {
	l := &ModulationLink{g: g, gain: gain, mode: modeForGain(gain)}
	if l.mode == LinkScaled {
		l.scaler = g.NewGain(gain)
	}
	return l
}

func (l *ModulationLink) Gain() float64 { return l.gain }

func (l *ModulationLink) Mode() LinkMode { return l.mode }

func (l *ModulationLink) IsZeroMode() bool { return l.mode == LinkZero }

// ListenForZeroModeChange registers fn to run whenever the link enters or
// leaves zero mode.
func (l *ModulationLink) ListenForZeroModeChange(fn func(zero bool)) {
	l.listeners = append(l.listeners, fn)
}

// ConnectFrom adds a modulation source.
func (l *ModulationLink) ConnectFrom(src graph.Node) {
	for _, s := range l.sources {
		if s == src {
			return
		}
	}
	l.sources = append(l.sources, src)
	switch l.mode {
	case LinkPassthrough:
		for _, d := range l.dests {
			l.g.Connect(src, d)
		}
	case LinkScaled:
		l.g.Connect(src, l.scaler)
	}
}

// Connect adds a destination.
func (l *ModulationLink) Connect(dst graph.Input) {
	for _, d := range l.dests {
		if d == dst {
			return
		}
	}
	l.dests = append(l.dests, dst)
	switch l.mode {
	case LinkPassthrough:
		for _, s := range l.sources {
			l.g.Connect(s, dst)
		}
	case LinkScaled:
		l.g.Connect(l.scaler, dst)
	}
}

// Disconnect removes dst, or every destination when dst is nil.
func (l *ModulationLink) Disconnect(dst graph.Input) {
	if dst == nil {
		for len(l.dests) > 0 {
			l.Disconnect(l.dests[len(l.dests)-1])
		}
		return
	}
	i := -1
	for j, d := range l.dests {
		if d == dst {
			i = j
			break
		}
	}
	if i < 0 {
		return
	}
	l.dests = append(l.dests[:i], l.dests[i+1:]...)
	switch l.mode {
	case LinkPassthrough:
		for _, s := range l.sources {
			l.g.Disconnect(s, dst)
		}
	case LinkScaled:
		l.g.Disconnect(l.scaler, dst)
	}
}

// SetGain changes the scale and rewires if the mode changes.
func (l *ModulationLink) SetGain(gain float64) {
	l.gain = gain
	mode := modeForGain(gain)
	if mode == l.mode {
		if mode == LinkScaled {
			l.scaler.Gain().SetValue(gain)
		}
		return
	}
	wasZero := l.mode == LinkZero

	switch l.mode {
	case LinkPassthrough:
		for _, s := range l.sources {
			for _, d := range l.dests {
				l.g.Disconnect(s, d)
			}
		}
	case LinkScaled:
		l.g.Release(l.scaler)
		l.scaler = nil
	}

	l.mode = mode
	switch mode {
	case LinkPassthrough:
		for _, s := range l.sources {
			for _, d := range l.dests {
				l.g.Connect(s, d)
			}
		}
	case LinkScaled:
		l.scaler = l.g.NewGain(gain)
		for _, s := range l.sources {
			l.g.Connect(s, l.scaler)
		}
		for _, d := range l.dests {
			l.g.Connect(l.scaler, d)
		}
	}

	if zero := mode == LinkZero; zero != wasZero {
		for _, fn := range l.listeners {
			fn(zero)
		}
	}
}
