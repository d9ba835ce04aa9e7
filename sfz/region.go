// Package sfz implements sample-based instruments driven by a JSON rendition of
// SFZ region lists: region matching, stereo pairing, looping and one-shot
// playback, and drum-kit choke groups.
package sfz

import (
	"math"
	"sync/atomic"

	"github.com/cwbudde/algo-polysynth/graph"
	"github.com/cwbudde/algo-polysynth/synth"
)

// LoopMode is the SFZ loop_mode opcode.
type LoopMode int

const (
	// LoopDefault loops when loop points are present.
	LoopDefault LoopMode = iota
	LoopNone
	LoopOneShot
	LoopContinuous
	LoopSustain
)

var loopModeNames = [...]string{"", "no_loop", "one_shot", "loop_continuous", "loop_sustain"}

func (m LoopMode) String() string {
	if m < 0 || int(m) >= len(loopModeNames) {
		return "unknown"
	}
	if m == LoopDefault {
		return "default"
	}
	return loopModeNames[m]
}

func parseLoopMode(s string) (LoopMode, bool) {
	for i, n := range loopModeNames {
		if i > 0 && n == s {
			return LoopMode(i), true
		}
	}
	return LoopDefault, false
}

// Filter is a per-region filter.
type Filter struct {
	Type   graph.FilterType
	Cutoff float64
	Q      float64
}

// Region is one sample mapped onto a key and velocity range.
type Region struct {
	Sample    string
	LoKey     int
	HiKey     int
	LoVel     int
	HiVel     int
	KeyCenter int
	// Tune is in cents.
	Tune float64
	// Pan is normalised to [-1,1].
	Pan    float64
	Filter *Filter
	// LoopStart and LoopEnd are frames in the source file; nil when absent.
	LoopStart *float64
	LoopEnd   *float64
	LoopMode  LoopMode
	// AmpEG is fully populated; ampeg_sustain is converted from percent.
	AmpEG synth.EnvelopeSpec
	// OneShot is set by a negative ampeg_release.
	OneShot            bool
	SendNoteOffToNotes []int

	// Redundant regions are the right half of a stereo pair and never match.
	Redundant bool
	// Corresponding is the right half paired with this region.
	Corresponding *Region

	// raw holds the range opcodes as written, for pairing.
	raw map[string]int

	buf    atomic.Pointer[graph.Buffer]
	failed atomic.Bool
}

func newRegion() *Region {
	return &Region{
		LoKey:     0,
		HiKey:     127,
		LoVel:     0,
		HiVel:     127,
		KeyCenter: 60,
		AmpEG: synth.EnvelopeSpec{
			Attack:  synth.Float(0),
			Hold:    synth.Float(0),
			Decay:   synth.Float(0),
			Sustain: synth.Float(1),
			Release: synth.Float(0),
		},
		raw: make(map[string]int),
	}
}

// Matches reports whether note and velocity fall inside the region's
// inclusive ranges.
func (r *Region) Matches(note int, velocity int) bool {
	return note >= r.LoKey && note <= r.HiKey && velocity >= r.LoVel && velocity <= r.HiVel
}

// Buffer returns the decoded sample, or nil until it has loaded.
func (r *Region) Buffer() *graph.Buffer { return r.buf.Load() }

// SetBuffer publishes a decoded sample. Safe to call from loader goroutines.
func (r *Region) SetBuffer(b *graph.Buffer) {
	r.buf.Store(b)
	r.failed.Store(false)
}

// Failed reports whether the last load attempt failed.
func (r *Region) Failed() bool { return r.failed.Load() }

func (r *Region) markFailed() { r.failed.Store(true) }

// Loops reports whether playback loops between LoopStart and LoopEnd.
func (r *Region) Loops() bool {
	if r.LoopStart == nil || r.LoopEnd == nil {
		return false
	}
	return r.LoopMode != LoopOneShot && r.LoopMode != LoopNone
}

// DetuneCents is the pitch offset of note relative to the recorded pitch.
func (r *Region) DetuneCents(note int) float64 {
	return float64(note-r.KeyCenter)*100 + r.Tune
}

// PlaybackRatio is the recorded frequency over the played frequency: above 1
// the sample plays slower and lasts longer.
func (r *Region) PlaybackRatio(note int) float64 {
	return math.Pow(2, -r.DetuneCents(note)/1200)
}

// Find returns the first playable region matching note and velocity, or nil.
func Find(regions []*Region, note int, velocity int) *Region {
	for _, r := range regions {
		if !r.Redundant && r.Matches(note, velocity) {
			return r
		}
	}
	return nil
}

const panEpsilon = 1e-3

var pairKeys = []string{"key", "lokey", "hikey", "lovel", "hivel"}

// Pair links hard-left regions with a matching hard-right region. The right
// region becomes redundant and the left one plays both.
func Pair(regions []*Region) {
	for _, left := range regions {
		if left.Redundant || left.Corresponding != nil || math.Abs(left.Pan+1) > panEpsilon {
			continue
		}
		for _, right := range regions {
			if right == left || right.Redundant || math.Abs(right.Pan-1) > panEpsilon {
				continue
			}
			if pairable(left, right) {
				right.Redundant = true
				left.Corresponding = right
				break
			}
		}
	}
}

func pairable(left *Region, right *Region) bool {
	for _, k := range pairKeys {
		lv, ok := left.raw[k]
		if !ok {
			continue
		}
		if rv, ok := right.raw[k]; !ok || rv != lv {
			return false
		}
	}
	return true
}
