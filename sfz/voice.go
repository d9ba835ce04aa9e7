package sfz

import (
	"math"

	"github.com/cwbudde/algo-polysynth/graph"
	"github.com/cwbudde/algo-polysynth/synth"
)

type voiceSource struct {
	src    graph.BufferSource
	pan    graph.Panner
	region *Region
}

// SampleVoice plays the region assigned before each trigger. A paired region
// plays its left and right samples hard-panned.
type SampleVoice struct {
	g       graph.Graph
	env     *synth.Envelope
	level   *synth.ModulationLink
	amp     graph.Gain
	filter  graph.Filter
	sources []voiceSource

	// OnChoke receives each note listed in the triggered region's
	// sendNoteOffToNotes.
	OnChoke func(note int)
	// ForceOneShot ignores releases and plays every sample to its end.
	ForceOneShot bool
	// Transpose shifts playback in semitones.
	Transpose float64

	next      *Region
	region    *Region
	ratio     float64
	note      int
	noteOnAt  float64
	noteOffAt float64
	endAt     float64
	held      bool
	released  bool
}

// NewSampleVoice builds the per-voice filter and amplifier.
func NewSampleVoice(g graph.Graph) (*SampleVoice, error) {
	env, err := synth.NewEnvelope(g, synth.EnvelopeSpec{Sustain: synth.Float(1)})
	if err != nil {
		return nil, err
	}
	v := &SampleVoice{
		g:      g,
		env:    env,
		level:  synth.NewModulationLink(g, 1),
		amp:    g.NewGain(0),
		filter: g.NewFilter(graph.FilterOff, 20000, 0.7071),
		note:   -1,
		ratio:  1,
	}
	g.Connect(v.filter, v.amp)
	v.level.ConnectFrom(env.Output())
	v.level.Connect(v.amp.Gain())
	return v, nil
}

// Connect routes the voice output to dst.
func (v *SampleVoice) Connect(dst graph.Input) { v.g.Connect(v.amp, dst) }

// Disconnect removes the route to dst.
func (v *SampleVoice) Disconnect(dst graph.Input) { v.g.Disconnect(v.amp, dst) }

// Assign selects the region the next Trigger plays.
func (v *SampleVoice) Assign(r *Region) { v.next = r }

// Region is the region currently sounding, or nil.
func (v *SampleVoice) Region() *Region { return v.region }

// Sources returns the panners of the live buffer sources.
func (v *SampleVoice) Sources() []graph.Panner {
	out := make([]graph.Panner, len(v.sources))
	for i, s := range v.sources {
		out[i] = s.pan
	}
	return out
}

func (v *SampleVoice) oneShot() bool {
	return v.ForceOneShot || (v.region != nil && v.region.OneShot)
}

func (v *SampleVoice) Trigger(note int, velocity int, when float64) {
	r := v.next
	v.next = nil
	if r == nil || r.Buffer() == nil {
		return
	}
	// Choke first: the listed notes may include the one this voice held.
	if v.OnChoke != nil {
		for _, n := range r.SendNoteOffToNotes {
			v.OnChoke(n)
		}
	}
	v.releaseSources(when)

	v.region = r
	v.note = note
	v.noteOnAt = when
	v.held = true
	v.released = false
	v.ratio = r.PlaybackRatio(note) * math.Pow(2, -v.Transpose/12)

	parts := []*Region{r}
	pans := []float64{r.Pan}
	if c := r.Corresponding; c != nil && c.Buffer() != nil {
		parts = append(parts, c)
		pans = []float64{-1, 1}
	}
	v.endAt = math.Inf(1)
	for i, part := range parts {
		buf := part.Buffer()
		src := v.g.NewBufferSource(buf)
		src.PlaybackRate().SetValue(1 / v.ratio)
		loops := part.Loops() && !v.oneShot()
		if loops {
			src.SetLoop(true, buf.SourceSeconds(*part.LoopStart), buf.SourceSeconds(*part.LoopEnd))
		} else {
			v.endAt = math.Min(v.endAt, when+buf.Duration()*v.ratio)
		}
		pan := v.g.NewPanner(pans[i])
		v.g.Connect(src, pan)
		v.g.Connect(pan, v.filter)
		src.Start(when, 0)
		v.sources = append(v.sources, voiceSource{src: src, pan: pan, region: part})
	}
	if v.oneShot() {
		// A one-shot lasts as long as its longest channel.
		v.endAt = when
		for _, s := range v.sources {
			v.endAt = math.Max(v.endAt, when+s.region.Buffer().Duration()*v.ratio)
		}
	}

	if f := r.Filter; f != nil {
		v.filter.SetType(f.Type)
		v.filter.Frequency().SetValue(f.Cutoff)
		v.filter.Q().SetValue(f.Q)
	} else {
		v.filter.SetType(graph.FilterOff)
	}
	v.level.SetGain(float64(velocity) / 127)
	v.env.Update(r.Envelope())
	if v.oneShot() {
		// Full level until the sample ends.
		v.env.Update(synth.EnvelopeSpec{Sustain: synth.Float(1), Decay: synth.Float(0)})
	}
	v.env.Trigger(when)
}

// Release starts the amplitude release. One-shot voices ignore it.
func (v *SampleVoice) Release(when float64) {
	if !v.held || v.oneShot() {
		return
	}
	v.held = false
	v.released = true
	v.noteOffAt = when
	v.env.Release(when)
	tail := when + v.env.ReleaseTime()
	for _, s := range v.sources {
		if s.region.LoopMode == LoopSustain && s.region.Loops() {
			s.src.SetLoop(false, 0, 0)
		}
		s.src.Stop(tail)
	}
}

// ForceStop silences the voice at when.
func (v *SampleVoice) ForceStop(when float64) {
	v.env.Reset()
	v.releaseSources(when)
	v.held = false
	v.released = false
	v.endAt = when
}

func (v *SampleVoice) releaseSources(when float64) {
	for _, s := range v.sources {
		s.src.Stop(when)
		v.g.Release(s.src)
		v.g.Release(s.pan)
	}
	v.sources = v.sources[:0]
}

// IsPlaying reports whether the voice still sounds at now. Durations scale by
// the playback ratio so slowed-down samples stay busy for longer.
func (v *SampleVoice) IsPlaying(now float64) bool {
	if len(v.sources) == 0 || now >= v.endAt {
		return false
	}
	if v.oneShot() || v.held {
		return true
	}
	if v.released {
		return now-v.noteOffAt < v.env.ReleaseTime()*v.ratio
	}
	return false
}

func (v *SampleVoice) Note() int { return v.note }

func (v *SampleVoice) Timestamp() float64 { return v.noteOnAt }
