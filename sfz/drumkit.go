package sfz

import (
	"github.com/cwbudde/algo-polysynth/graph"
	"github.com/cwbudde/algo-polysynth/synth"
)

// DrumKit is a Sampler whose notes always play to the end of their sample or
// until choked. Note-offs and the sustain pedal are ignored.
type DrumKit struct {
	*Sampler
}

// NewDrumKit builds a drum kit over regions.
func NewDrumKit(g graph.Graph, regions []*Region, cfg SamplerConfig) (*DrumKit, error) {
	s, err := newSampler(g, regions, cfg, synth.KindDrumKit)
	if err != nil {
		return nil, err
	}
	for _, v := range s.pool.Voices() {
		v.ForceOneShot = true
	}
	return &DrumKit{Sampler: s}, nil
}

func (d *DrumKit) NoteOff(note int) {}

func (d *DrumKit) PedalDown() {}

func (d *DrumKit) PedalUp() {}

var _ synth.Instrument = (*DrumKit)(nil)
