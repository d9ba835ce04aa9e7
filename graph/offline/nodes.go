package offline

import (
	"math"

	dspcore "github.com/cwbudde/algo-dsp/dsp/core"
	"github.com/cwbudde/algo-dsp/dsp/filter/biquad"

	"github.com/cwbudde/algo-polysynth/dsp"
	"github.com/cwbudde/algo-polysynth/graph"
)

type renderNode interface {
	graph.Node
	base() *nodeBase
	process() (float64, float64)
}

type nodeBase struct {
	ctx        *Context
	id         int
	label      string
	inputs     []renderNode
	params     []*Param
	cacheFrame int64
	cl, cr     float64
	busy       bool
	released   bool
}

func (b *nodeBase) Label() string   { return b.label }
func (b *nodeBase) base() *nodeBase { return b }
func (b *nodeBase) receiverID() int { return b.id }

func (b *nodeBase) addInput(n renderNode) { b.inputs = append(b.inputs, n) }

func (b *nodeBase) removeInput(n renderNode) {
	for i, in := range b.inputs {
		if in == n {
			b.inputs = append(b.inputs[:i], b.inputs[i+1:]...)
			return
		}
	}
}

func (b *nodeBase) sumInputs() (float64, float64) {
	var l, r float64
	for _, in := range b.inputs {
		il, ir := pull(in)
		l += il
		r += ir
	}
	return l, r
}

// pull evaluates n once per frame. Feedback cycles read as silence.
func pull(n renderNode) (float64, float64) {
	b := n.base()
	if b.cacheFrame == b.ctx.frame {
		return b.cl, b.cr
	}
	if b.busy {
		return 0, 0
	}
	b.busy = true
	l, r := n.process()
	b.busy = false
	b.cacheFrame = b.ctx.frame
	b.cl, b.cr = l, r
	return l, r
}

type destination struct {
	nodeBase
}

func (d *destination) process() (float64, float64) { return d.sumInputs() }

type gainNode struct {
	nodeBase
	gain *Param
}

func (n *gainNode) Gain() graph.Param { return n.gain }

func (n *gainNode) process() (float64, float64) {
	l, r := n.sumInputs()
	g := n.gain.current()
	return l * g, r * g
}

type constantNode struct {
	nodeBase
	offset *Param
}

func (n *constantNode) Offset() graph.Param { return n.offset }

func (n *constantNode) process() (float64, float64) {
	v := n.offset.current()
	return v, v
}

type oscillatorNode struct {
	nodeBase
	freq  *Param
	width *Param
	wave  graph.Waveform
	phase float64
}

func (n *oscillatorNode) Frequency() graph.Param       { return n.freq }
func (n *oscillatorNode) Width() graph.Param           { return n.width }
func (n *oscillatorNode) SetWaveform(w graph.Waveform) { n.wave = w }
func (n *oscillatorNode) Waveform() graph.Waveform     { return n.wave }

func (n *oscillatorNode) process() (float64, float64) {
	f := n.freq.current()
	var width float64
	if n.wave == graph.WavePWM {
		width = n.width.current()
	}
	v := dsp.Waveform(n.wave, n.phase, width)
	n.phase += f / n.ctx.sampleRate
	n.phase -= math.Floor(n.phase)
	return v, v
}

type noteToFreqNode struct {
	nodeBase
}

func (n *noteToFreqNode) process() (float64, float64) {
	l, r := n.sumInputs()
	f := dsp.NoteToFrequency(0.5 * (l + r))
	return f, f
}

type pannerNode struct {
	nodeBase
	pan *Param
}

func (n *pannerNode) Pan() graph.Param { return n.pan }

func (n *pannerNode) process() (float64, float64) {
	l, r := n.sumInputs()
	m := 0.5 * (l + r)
	x := (dsp.Clamp(n.pan.current(), -1, 1) + 1) * 0.5
	return m * math.Cos(x*math.Pi/2), m * math.Sin(x*math.Pi/2)
}

type filterNode struct {
	nodeBase
	typ      graph.FilterType
	freq     *Param
	q        *Param
	left     biquad.Section
	right    biquad.Section
	lastF    float64
	lastQ    float64
	lastType graph.FilterType
	designed bool
}

func (n *filterNode) Frequency() graph.Param { return n.freq }
func (n *filterNode) Q() graph.Param         { return n.q }
func (n *filterNode) Type() graph.FilterType { return n.typ }

func (n *filterNode) SetType(t graph.FilterType) {
	if t != n.typ {
		n.typ = t
		n.left.Reset()
		n.right.Reset()
	}
}

func (n *filterNode) process() (float64, float64) {
	l, r := n.sumInputs()
	if n.typ == graph.FilterOff {
		return l, r
	}
	f := n.freq.current()
	q := n.q.current()
	if !n.designed || n.lastType != n.typ || math.Abs(f-n.lastF) > 1e-3 || math.Abs(q-n.lastQ) > 1e-6 {
		c := dsp.FilterCoefficients(n.typ, f, q, n.ctx.sampleRate)
		// Swapping coefficients keeps the section state.
		n.left.Coefficients = c
		n.right.Coefficients = c
		n.lastF, n.lastQ, n.lastType = f, q, n.typ
		n.designed = true
	}
	return dspcore.FlushDenormals(n.left.ProcessSample(l)), dspcore.FlushDenormals(n.right.ProcessSample(r))
}

type bufferSourceNode struct {
	nodeBase
	buf       *graph.Buffer
	rate      *Param
	started   bool
	running   bool
	ended     bool
	startAt   float64
	offset    float64
	stopAt    float64
	pos       float64
	loop      bool
	loopStart float64
	loopEnd   float64
}

func (n *bufferSourceNode) PlaybackRate() graph.Param { return n.rate }

func (n *bufferSourceNode) SetLoop(enabled bool, start float64, end float64) {
	n.loop = enabled
	n.loopStart = start
	n.loopEnd = end
}

func (n *bufferSourceNode) Start(when float64, offset float64) {
	if n.started {
		return
	}
	n.started = true
	n.startAt = when
	n.offset = offset
}

func (n *bufferSourceNode) Stop(when float64) {
	n.stopAt = when
}

// Ended reports whether playback has finished or been stopped.
func (n *bufferSourceNode) Ended() bool { return n.ended }

func (n *bufferSourceNode) process() (float64, float64) {
	if !n.started || n.ended || n.buf.Frames() == 0 {
		return 0, 0
	}
	now := n.ctx.Now()
	if now < n.startAt {
		return 0, 0
	}
	if n.stopAt >= 0 && now >= n.stopAt {
		n.ended = true
		return 0, 0
	}
	if !n.running {
		n.running = true
		n.pos = n.offset * n.buf.SampleRate
	}

	frames := float64(n.buf.Frames())
	if n.pos >= frames || n.pos < 0 {
		n.ended = true
		return 0, 0
	}
	l := readLinear(n.buf.Channels[0], n.pos)
	r := l
	if len(n.buf.Channels) > 1 {
		r = readLinear(n.buf.Channels[1], n.pos)
	}

	n.pos += n.rate.current() * n.buf.SampleRate / n.ctx.sampleRate
	if n.loop && n.loopEnd > n.loopStart {
		ls := n.loopStart * n.buf.SampleRate
		le := math.Min(n.loopEnd*n.buf.SampleRate, frames)
		if le > ls && n.pos >= le {
			n.pos = ls + math.Mod(n.pos-ls, le-ls)
		}
	}
	return l, r
}

func readLinear(data []float32, pos float64) float64 {
	i := int(pos)
	if i >= len(data) {
		return 0
	}
	frac := pos - float64(i)
	a := float64(data[i])
	if i+1 >= len(data) {
		return a * (1 - frac)
	}
	return a + frac*(float64(data[i+1])-a)
}
