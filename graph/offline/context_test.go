package offline

import (
	"math"
	"testing"

	"github.com/cwbudde/algo-polysynth/graph"
)

func TestParamLinearRamp(t *testing.T) {
	c := NewContext(1000)
	g := c.NewGain(0)
	p := g.Gain().(*Param)
	p.SetValueAtTime(0, 1)
	p.LinearRampToValueAtTime(1, 2)

	if got := p.ValueAt(1.5); math.Abs(got-0.5) > 1e-9 {
		t.Fatalf("ramp midpoint: got=%f want=0.5", got)
	}
	if got := p.ValueAt(3); got != 1 {
		t.Fatalf("after ramp: got=%f want=1", got)
	}
	if got := p.ValueAt(0.5); got != 0 {
		t.Fatalf("before ramp: got=%f want=0", got)
	}
}

func TestParamSetTargetApproachesTarget(t *testing.T) {
	c := NewContext(1000)
	p := c.NewConstant(1).Offset().(*Param)
	p.SetTargetAtTime(0, 0, 0.1)

	if got := p.ValueAt(0.1); math.Abs(got-math.Exp(-1)) > 1e-3 {
		t.Fatalf("one time constant: got=%f want=%f", got, math.Exp(-1))
	}
	if got := p.ValueAt(10); math.Abs(got) > 1e-6 {
		t.Fatalf("long after: got=%f want=0", got)
	}
}

func TestCancelScheduledValuesKeepsEarlierEvents(t *testing.T) {
	c := NewContext(1000)
	p := c.NewConstant(0).Offset().(*Param)
	p.SetValueAtTime(0, 0)
	p.LinearRampToValueAtTime(1, 1)
	p.CancelScheduledValues(0.5)
	if p.Events() != 1 {
		t.Fatalf("expected 1 surviving event, got %d", p.Events())
	}
	p.LinearRampToValueAtTime(0.5, 0.5)
	if got := p.ValueAt(0.25); math.Abs(got-0.25) > 1e-9 {
		t.Fatalf("restored line: got=%f want=0.25", got)
	}
}

func TestCompactPreservesFutureValues(t *testing.T) {
	c := NewContext(1000)
	p := c.NewConstant(0).Offset().(*Param)
	p.SetValueAtTime(0.2, 0)
	p.LinearRampToValueAtTime(1, 1)
	p.SetTargetAtTime(0, 2, 0.5)
	want := p.ValueAt(2.7)

	p.compact(1.5)
	if got := p.ValueAt(2.7); math.Abs(got-want) > 1e-12 {
		t.Fatalf("compact changed future value: got=%f want=%f", got, want)
	}
	if p.Events() != 2 {
		t.Fatalf("expected compaction to 2 events, got %d", p.Events())
	}
}

func TestConnectIsIdempotentAndTracked(t *testing.T) {
	c := NewContext(48000)
	src := c.NewConstant(1)
	g := c.NewGain(0.5)
	c.Connect(src, g)
	c.Connect(src, g)
	if c.EdgeCount() != 1 {
		t.Fatalf("expected 1 edge, got %d", c.EdgeCount())
	}
	if !c.HasEdge(src, g) {
		t.Fatalf("expected src->gain edge")
	}
	c.Disconnect(src, g)
	if c.HasEdge(src, g) || c.EdgeCount() != 0 {
		t.Fatalf("expected edge removed")
	}
}

func TestReleaseDropsAllEdges(t *testing.T) {
	c := NewContext(48000)
	src := c.NewConstant(1)
	g := c.NewGain(1)
	mod := c.NewConstant(0.1)
	c.Connect(src, g)
	c.Connect(mod, g.Gain())
	c.Connect(g, c.Destination())
	before := c.LiveNodes()

	c.Release(g)
	if c.EdgeCount() != 0 {
		t.Fatalf("expected no edges after release, got %d", c.EdgeCount())
	}
	if c.LiveNodes() != before-1 {
		t.Fatalf("live nodes: got=%d want=%d", c.LiveNodes(), before-1)
	}
}

func TestRenderGainOfConstant(t *testing.T) {
	c := NewContext(48000)
	src := c.NewConstant(0.5)
	g := c.NewGain(0.5)
	c.Connect(src, g)
	c.Connect(g, c.Destination())
	out := c.Render(4)
	for i, v := range out {
		if math.Abs(float64(v)-0.25) > 1e-6 {
			t.Fatalf("sample %d: got=%f want=0.25", i, v)
		}
	}
	if math.Abs(c.Now()-4.0/48000) > 1e-12 {
		t.Fatalf("clock did not advance: %f", c.Now())
	}
}

func TestParamSumsConnectedInputs(t *testing.T) {
	c := NewContext(48000)
	src := c.NewConstant(1)
	mod := c.NewConstant(0.25)
	g := c.NewGain(0.5)
	c.Connect(src, g)
	c.Connect(mod, g.Gain())
	c.Connect(g, c.Destination())
	out := c.Render(1)
	if math.Abs(float64(out[0])-0.75) > 1e-6 {
		t.Fatalf("modulated gain: got=%f want=0.75", out[0])
	}
}

func TestPannerHardLeftAndRight(t *testing.T) {
	c := NewContext(48000)
	src := c.NewConstant(1)
	left := c.NewPanner(-1)
	c.Connect(src, left)
	c.Connect(left, c.Destination())
	out := c.Render(1)
	if math.Abs(float64(out[0])-1) > 1e-6 || math.Abs(float64(out[1])) > 1e-6 {
		t.Fatalf("hard left: got L=%f R=%f", out[0], out[1])
	}
}

func TestOscillatorFrequency(t *testing.T) {
	const sr = 48000
	c := NewContext(sr)
	osc := c.NewOscillator(graph.WaveSine, 1000)
	c.Connect(osc, c.Destination())
	out := c.Render(sr / 10)
	crossings := 0
	for i := 1; i < len(out)/2; i++ {
		a, b := out[(i-1)*2], out[i*2]
		if a < 0 && b >= 0 {
			crossings++
		}
	}
	if crossings < 99 || crossings > 101 {
		t.Fatalf("expected ~100 rising crossings in 100ms at 1kHz, got %d", crossings)
	}
}

func TestNoteToFrequencyNode(t *testing.T) {
	c := NewContext(48000)
	note := c.NewConstant(69)
	n2f := c.NewNoteToFrequency()
	c.Connect(note, n2f)
	c.Connect(n2f, c.Destination())
	out := c.Render(1)
	if math.Abs(float64(out[0])-440) > 1 {
		t.Fatalf("note 69: got=%f want=440", out[0])
	}
}

func TestBufferSourcePlaysOnceAndEnds(t *testing.T) {
	c := NewContext(4)
	buf := &graph.Buffer{SampleRate: 4, Channels: [][]float32{{1, 2, 3, 4}}}
	src := c.NewBufferSource(buf)
	c.Connect(src, c.Destination())
	src.Start(0, 0)
	out := c.Render(6)
	want := []float32{1, 2, 3, 4, 0, 0}
	for i, w := range want {
		if out[i*2] != w {
			t.Fatalf("frame %d: got=%f want=%f", i, out[i*2], w)
		}
	}
	if !src.(*bufferSourceNode).Ended() {
		t.Fatalf("expected source to end")
	}
}

func TestBufferSourceLoops(t *testing.T) {
	c := NewContext(4)
	buf := &graph.Buffer{SampleRate: 4, Channels: [][]float32{{1, 2, 3, 4}}}
	src := c.NewBufferSource(buf)
	src.SetLoop(true, 0.25, 0.75)
	c.Connect(src, c.Destination())
	src.Start(0, 0)
	out := c.Render(7)
	want := []float32{1, 2, 3, 2, 3, 2, 3}
	for i, w := range want {
		if out[i*2] != w {
			t.Fatalf("frame %d: got=%f want=%f", i, out[i*2], w)
		}
	}
}

func TestReachesFollowsParams(t *testing.T) {
	c := NewContext(48000)
	mod := c.NewOscillator(graph.WaveSine, 5)
	carrier := c.NewOscillator(graph.WaveSine, 440)
	sum := c.NewGain(1)
	c.Connect(mod, carrier.Frequency())
	c.Connect(carrier, sum)
	if !c.Reaches(mod, sum) {
		t.Fatalf("expected modulator to reach sum through carrier frequency")
	}
	if c.Reaches(sum, carrier) {
		t.Fatalf("unexpected reverse path")
	}
}

func TestConvolverIdentityLagsOnePartition(t *testing.T) {
	c := NewContext(48000)
	src := c.NewConstant(1)
	conv, err := c.NewConvolver([]float32{1}, nil)
	if err != nil {
		t.Fatalf("NewConvolver: %v", err)
	}
	c.Connect(src, conv)
	c.Connect(conv, c.Destination())
	out := c.Render(2 * convolverPartSize)
	if out[0] != 0 || out[2*(convolverPartSize-1)] != 0 {
		t.Fatalf("expected silence during the first partition")
	}
	for i := convolverPartSize; i < 2*convolverPartSize; i++ {
		if math.Abs(float64(out[i*2])-1) > 1e-4 {
			t.Fatalf("frame %d: got=%f want=1", i, out[i*2])
		}
	}
}

func TestFilterKeepsStateAcrossCutoffChange(t *testing.T) {
	c := NewContext(48000)
	src := c.NewConstant(1)
	f := c.NewFilter(graph.FilterLowpass, 1000, 0.7071)
	c.Connect(src, f)
	c.Connect(f, c.Destination())
	out := c.Render(4800)
	if got := out[len(out)-2]; math.Abs(float64(got)-1) > 1e-3 {
		t.Fatalf("settled lowpass dc: got=%f want=1", got)
	}
	f.Frequency().SetValue(2000)
	out = c.Render(1)
	if math.Abs(float64(out[0])-1) > 1e-3 {
		t.Fatalf("after cutoff change: got=%f want=1", out[0])
	}
}
