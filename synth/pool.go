package synth

// Voice is a reusable note player managed by a Pool.
type Voice interface {
	Trigger(note int, velocity int, when float64)
	Release(when float64)
	ForceStop(when float64)
	IsPlaying(now float64) bool
	Note() int
	// Timestamp is the time of the last trigger.
	Timestamp() float64
}

// Pool is a fixed set of voices with oldest-voice stealing and sustain pedal
// handling.
type Pool[V Voice] struct {
	voices []V
	now    func() float64
	pedal  bool
	held   map[int]bool
}

// NewPool manages voices. now is the scheduling clock.
func NewPool[V Voice](voices []V, now func() float64) *Pool[V] {
	return &Pool[V]{voices: voices, now: now, held: make(map[int]bool)}
}

// Voices returns the pool in allocation order.
func (p *Pool[V]) Voices() []V { return p.voices }

// Allocate picks the first idle voice, or else the one triggered longest ago.
// Ties go to the lowest index.
func (p *Pool[V]) Allocate() (V, int) {
	now := p.now()
	best := -1
	for i, v := range p.voices {
		if !v.IsPlaying(now) {
			return v, i
		}
		if best < 0 || v.Timestamp() < p.voices[best].Timestamp() {
			best = i
		}
	}
	if best < 0 {
		var zero V
		return zero, -1
	}
	return p.voices[best], best
}

// NoteOn triggers note on an allocated voice and returns the voice index, or
// -1 for an empty pool.
func (p *Pool[V]) NoteOn(note int, velocity int) int {
	return p.NoteOnFunc(note, velocity, nil)
}

// NoteOnFunc is NoteOn with a hook that prepares the allocated voice before it
// is triggered.
func (p *Pool[V]) NoteOnFunc(note int, velocity int, prepare func(V)) int {
	v, i := p.Allocate()
	if i < 0 {
		return -1
	}
	if prepare != nil {
		prepare(v)
	}
	v.Trigger(note, velocity, p.now())
	// After Trigger: a choke fired by the trigger may clear note.
	p.held[note] = true
	return i
}

// NoteOff releases every voice holding note, unless the sustain pedal defers
// the release to PedalUp.
func (p *Pool[V]) NoteOff(note int) {
	if !p.held[note] {
		return
	}
	delete(p.held, note)
	if p.pedal {
		return
	}
	now := p.now()
	for _, v := range p.voices {
		if v.Note() == note && v.IsPlaying(now) {
			v.Release(now)
		}
	}
}

// PedalDown holds released notes until PedalUp.
func (p *Pool[V]) PedalDown() { p.pedal = true }

// PedalUp releases every playing voice whose key is no longer held.
func (p *Pool[V]) PedalUp() {
	if !p.pedal {
		return
	}
	p.pedal = false
	now := p.now()
	for _, v := range p.voices {
		if v.IsPlaying(now) && !p.held[v.Note()] {
			v.Release(now)
		}
	}
}

// Pedal reports whether the sustain pedal is down.
func (p *Pool[V]) Pedal() bool { return p.pedal }

// ForceNoteOff hard-stops every voice playing note.
func (p *Pool[V]) ForceNoteOff(note int) {
	now := p.now()
	delete(p.held, note)
	for _, v := range p.voices {
		if v.Note() == note && v.IsPlaying(now) {
			v.ForceStop(now)
		}
	}
}

// AllNotesOff hard-stops every voice, forgets held keys and lifts the pedal.
// No release tails are played.
func (p *Pool[V]) AllNotesOff() {
	now := p.now()
	p.pedal = false
	clear(p.held)
	for _, v := range p.voices {
		v.ForceStop(now)
	}
}

// Panic is AllNotesOff for callers reacting to stuck notes.
func (p *Pool[V]) Panic() { p.AllNotesOff() }
