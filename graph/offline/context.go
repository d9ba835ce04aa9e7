// Package offline is a reference implementation of graph.Graph that renders
// sample by sample into memory. It also records every edge so that topology
// can be asserted in tests and inspected by tools.
package offline

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-polysynth/graph"
)

type edge struct {
	src int
	dst int
}

type receiver interface {
	receiverID() int
	addInput(n renderNode)
	removeInput(n renderNode)
}

// Context owns all nodes, params and edges of one offline graph.
type Context struct {
	sampleRate float64
	frame      int64
	nextID     int
	nodes      map[int]renderNode
	edges      map[edge]struct{}
	params     []*Param
	dest       *destination
}

var _ graph.Graph = (*Context)(nil)

// NewContext creates an empty graph rendering at sampleRate.
func NewContext(sampleRate float64) *Context {
	if sampleRate <= 0 {
		sampleRate = 48000
	}
	c := &Context{
		sampleRate: sampleRate,
		nodes:      make(map[int]renderNode),
		edges:      make(map[edge]struct{}),
	}
	c.dest = &destination{}
	c.register(&c.dest.nodeBase, "destination")
	return c
}

func (c *Context) allocID() int {
	c.nextID++
	return c.nextID
}

func (c *Context) register(b *nodeBase, kind string) {
	b.ctx = c
	b.id = c.allocID()
	b.label = fmt.Sprintf("%s#%d", kind, b.id)
	b.cacheFrame = -1
}

func (c *Context) track(n renderNode) {
	c.nodes[n.base().id] = n
}

func (c *Context) SampleRate() float64 { return c.sampleRate }

func (c *Context) Now() float64 { return float64(c.frame) / c.sampleRate }

// SetTime moves the render clock. Intended for driving control code in tests
// and tools between renders.
func (c *Context) SetTime(t float64) {
	if t < 0 {
		t = 0
	}
	c.frame = int64(math.Round(t * c.sampleRate))
}

// Destination is the final stereo sum rendered by Render.
func (c *Context) Destination() graph.Input { return c.dest }

func (c *Context) NewGain(gain float64) graph.Gain {
	n := &gainNode{}
	c.register(&n.nodeBase, "gain")
	n.gain = newParam(c, n.label, "gain", gain)
	n.params = []*Param{n.gain}
	c.track(n)
	return n
}

func (c *Context) NewConstant(offset float64) graph.Constant {
	n := &constantNode{}
	c.register(&n.nodeBase, "constant")
	n.offset = newParam(c, n.label, "offset", offset)
	n.params = []*Param{n.offset}
	c.track(n)
	return n
}

func (c *Context) NewOscillator(w graph.Waveform, frequency float64) graph.Oscillator {
	n := &oscillatorNode{wave: w}
	c.register(&n.nodeBase, "oscillator")
	n.freq = newParam(c, n.label, "frequency", frequency)
	n.width = newParam(c, n.label, "width", 0)
	n.params = []*Param{n.freq, n.width}
	c.track(n)
	return n
}

func (c *Context) NewPanner(pan float64) graph.Panner {
	n := &pannerNode{}
	c.register(&n.nodeBase, "panner")
	n.pan = newParam(c, n.label, "pan", pan)
	n.params = []*Param{n.pan}
	c.track(n)
	return n
}

func (c *Context) NewFilter(t graph.FilterType, frequency float64, q float64) graph.Filter {
	n := &filterNode{typ: t}
	c.register(&n.nodeBase, "filter")
	n.freq = newParam(c, n.label, "frequency", frequency)
	n.q = newParam(c, n.label, "q", q)
	n.params = []*Param{n.freq, n.q}
	c.track(n)
	return n
}

func (c *Context) NewBufferSource(b *graph.Buffer) graph.BufferSource {
	n := &bufferSourceNode{buf: b, stopAt: -1}
	c.register(&n.nodeBase, "buffer")
	n.rate = newParam(c, n.label, "playbackRate", 1)
	n.params = []*Param{n.rate}
	c.track(n)
	return n
}

func (c *Context) NewNoteToFrequency() graph.Node {
	n := &noteToFreqNode{}
	c.register(&n.nodeBase, "note2freq")
	c.track(n)
	return n
}

// NewConvolver creates an impulse-response convolver node. It is not part of
// graph.Graph: it models the external mixing stage's verb for tools.
func (c *Context) NewConvolver(left, right []float32) (*Convolver, error) {
	n, err := newConvolver(left, right)
	if err != nil {
		return nil, err
	}
	c.register(&n.nodeBase, "convolver")
	c.track(n)
	return n, nil
}

func (c *Context) Connect(src graph.Node, dst graph.Input) {
	s := c.node(src)
	r := c.receiver(dst)
	key := edge{src: s.base().id, dst: r.receiverID()}
	if _, ok := c.edges[key]; ok {
		return
	}
	c.edges[key] = struct{}{}
	r.addInput(s)
}

func (c *Context) Disconnect(src graph.Node, dst graph.Input) {
	s := c.node(src)
	r := c.receiver(dst)
	key := edge{src: s.base().id, dst: r.receiverID()}
	if _, ok := c.edges[key]; !ok {
		return
	}
	delete(c.edges, key)
	r.removeInput(s)
}

func (c *Context) Release(n graph.Node) {
	rn := c.node(n)
	b := rn.base()
	if b.released {
		return
	}
	owned := map[int]receiver{b.id: b}
	for _, p := range b.params {
		owned[p.id] = p
		p.dead = true
	}
	for key := range c.edges {
		if key.src == b.id {
			if dst := c.receiverByID(key.dst); dst != nil {
				dst.removeInput(rn)
			}
			delete(c.edges, key)
			continue
		}
		if r, ok := owned[key.dst]; ok {
			if src, ok := c.nodes[key.src]; ok {
				r.removeInput(src)
			}
			delete(c.edges, key)
		}
	}
	b.released = true
	delete(c.nodes, b.id)
}

func (c *Context) node(n graph.Node) renderNode {
	rn, ok := n.(renderNode)
	if !ok || rn.base().ctx != c {
		panic(fmt.Sprintf("offline: node %s does not belong to this context", n.Label()))
	}
	return rn
}

func (c *Context) receiver(in graph.Input) receiver {
	switch v := in.(type) {
	case *Param:
		if v.ctx != c {
			panic(fmt.Sprintf("offline: param %s does not belong to this context", v.Label()))
		}
		return v
	case renderNode:
		return c.node(v).base()
	}
	panic(fmt.Sprintf("offline: unsupported input %T", in))
}

func (c *Context) receiverByID(id int) receiver {
	if n, ok := c.nodes[id]; ok {
		return n.base()
	}
	if id == c.dest.id {
		return &c.dest.nodeBase
	}
	for _, p := range c.params {
		if p.id == id {
			return p
		}
	}
	return nil
}

// HasEdge reports whether src is directly connected to dst.
func (c *Context) HasEdge(src graph.Node, dst graph.Input) bool {
	s := c.node(src)
	r := c.receiver(dst)
	_, ok := c.edges[edge{src: s.base().id, dst: r.receiverID()}]
	return ok
}

// EdgeCount returns the number of live edges.
func (c *Context) EdgeCount() int { return len(c.edges) }

// LiveNodes returns the number of created, not yet released nodes.
func (c *Context) LiveNodes() int { return len(c.nodes) }

// Sources lists the nodes directly connected into dst.
func (c *Context) Sources(dst graph.Input) []graph.Node {
	id := c.receiver(dst).receiverID()
	var out []graph.Node
	for key := range c.edges {
		if key.dst != id {
			continue
		}
		if n, ok := c.nodes[key.src]; ok {
			out = append(out, n)
		}
	}
	return out
}

// Reaches reports whether a directed path leads from src to dst, including
// paths through parameters of intermediate nodes.
func (c *Context) Reaches(src graph.Node, dst graph.Input) bool {
	target := c.receiver(dst).receiverID()
	seen := map[int]bool{}
	var walk func(id int) bool
	walk = func(id int) bool {
		if id == target {
			return true
		}
		if seen[id] {
			return false
		}
		seen[id] = true
		for key := range c.edges {
			if key.src != id {
				continue
			}
			if key.dst == target {
				return true
			}
			if walk(c.ownerOf(key.dst)) {
				return true
			}
		}
		return false
	}
	return walk(c.node(src).base().id)
}

func (c *Context) ownerOf(receiverID int) int {
	if _, ok := c.nodes[receiverID]; ok {
		return receiverID
	}
	for _, n := range c.nodes {
		for _, p := range n.base().params {
			if p.id == receiverID {
				return n.base().id
			}
		}
	}
	return receiverID
}

// Render advances the clock by frames and returns interleaved stereo samples
// taken from the destination.
func (c *Context) Render(frames int) []float32 {
	out := make([]float32, frames*2)
	c.compact()
	for i := 0; i < frames; i++ {
		l, r := pull(c.dest)
		out[i*2] = float32(l)
		out[i*2+1] = float32(r)
		c.frame++
	}
	return out
}

func (c *Context) compact() {
	now := c.Now()
	live := c.params[:0]
	for _, p := range c.params {
		if p.dead {
			continue
		}
		p.compact(now)
		live = append(live, p)
	}
	c.params = live
}
