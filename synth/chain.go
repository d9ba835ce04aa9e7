package synth

import "github.com/cwbudde/algo-polysynth/graph"

// StageBuilder creates an optional stage node and returns the param its
// gating links drive.
type StageBuilder func() (graph.Node, graph.Param)

type chainStage struct {
	gates []*ModulationLink
	keep  func() bool
	build StageBuilder
	node  graph.Node
	param graph.Param
}

func (s *chainStage) wanted() bool {
	if s.keep != nil && s.keep() {
		return true
	}
	for _, l := range s.gates {
		if !l.IsZeroMode() {
			return true
		}
	}
	return false
}

type chainEdge struct {
	src graph.Node
	dst graph.Input
}

// OutputChain keeps a fixed source wired through only those optional stages
// whose gating links are active, in stage order, to every destination.
type OutputChain struct {
	g      graph.Graph
	source graph.Node
	stages []*chainStage
	dests  []graph.Input
	edges  []chainEdge
}

// NewOutputChain creates a chain with no stages.
func NewOutputChain(g graph.Graph, source graph.Node) *OutputChain {
	return &OutputChain{g: g, source: source}
}

// AddStage appends an optional stage. It is live while any gate is out of
// zero mode or keep reports true; keep may be nil.
func (c *OutputChain) AddStage(build StageBuilder, keep func() bool, gates ...*ModulationLink) {
	s := &chainStage{gates: gates, keep: keep, build: build}
	c.stages = append(c.stages, s)
	for _, l := range gates {
		l.ListenForZeroModeChange(func(bool) { c.Refresh() })
	}
	c.Refresh()
}

// Connect adds a destination for the chain output.
func (c *OutputChain) Connect(dst graph.Input) {
	for _, d := range c.dests {
		if d == dst {
			return
		}
	}
	c.dests = append(c.dests, dst)
	c.Refresh()
}

// Disconnect removes dst, or every destination when dst is nil.
func (c *OutputChain) Disconnect(dst graph.Input) {
	if dst == nil {
		c.dests = nil
	} else {
		for i, d := range c.dests {
			if d == dst {
				c.dests = append(c.dests[:i], c.dests[i+1:]...)
				break
			}
		}
	}
	c.Refresh()
}

// Stage returns the live node of stage i, or nil if the stage is bypassed.
func (c *OutputChain) Stage(i int) graph.Node {
	if i < 0 || i >= len(c.stages) {
		return nil
	}
	return c.stages[i].node
}

// LiveStages counts the stages currently built.
func (c *OutputChain) LiveStages() int {
	n := 0
	for _, s := range c.stages {
		if s.node != nil {
			n++
		}
	}
	return n
}

// Refresh builds or destroys stages whose inclusion changed and relinks the
// chain with as few edge edits as possible.
func (c *OutputChain) Refresh() {
	for _, s := range c.stages {
		want := s.wanted()
		switch {
		case want && s.node == nil:
			s.node, s.param = s.build()
			for _, l := range s.gates {
				l.Connect(s.param)
			}
		case !want && s.node != nil:
			for _, l := range s.gates {
				l.Disconnect(s.param)
			}
			c.dropEdgesOf(s.node)
			c.g.Release(s.node)
			s.node, s.param = nil, nil
		}
	}

	var next []chainEdge
	prev := c.source
	for _, s := range c.stages {
		if s.node == nil {
			continue
		}
		next = append(next, chainEdge{src: prev, dst: s.node})
		prev = s.node
	}
	for _, d := range c.dests {
		next = append(next, chainEdge{src: prev, dst: d})
	}

	for _, e := range c.edges {
		if !containsEdge(next, e) {
			c.g.Disconnect(e.src, e.dst)
		}
	}
	for _, e := range next {
		if !containsEdge(c.edges, e) {
			c.g.Connect(e.src, e.dst)
		}
	}
	c.edges = next
}

func (c *OutputChain) dropEdgesOf(n graph.Node) {
	keep := c.edges[:0]
	for _, e := range c.edges {
		if e.src == n || e.dst == graph.Input(n) {
			continue
		}
		keep = append(keep, e)
	}
	c.edges = keep
}

func containsEdge(edges []chainEdge, e chainEdge) bool {
	for _, x := range edges {
		if x == e {
			return true
		}
	}
	return false
}
