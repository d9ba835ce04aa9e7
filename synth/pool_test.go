package synth

import "testing"

type fakeVoice struct {
	note     int
	ts       float64
	playing  bool
	releases int
	stops    int
	// onTrigger runs at the start of Trigger.
	onTrigger func()
}

func (v *fakeVoice) Trigger(note int, velocity int, when float64) {
	if v.onTrigger != nil {
		v.onTrigger()
	}
	v.note = note
	v.ts = when
	v.playing = true
}

func (v *fakeVoice) Release(when float64) {
	v.releases++
	v.playing = false
}

func (v *fakeVoice) ForceStop(when float64) {
	v.stops++
	v.playing = false
}

func (v *fakeVoice) IsPlaying(now float64) bool { return v.playing }
func (v *fakeVoice) Note() int                  { return v.note }
func (v *fakeVoice) Timestamp() float64         { return v.ts }

func newFakePool(n int) (*Pool[*fakeVoice], []*fakeVoice, *float64) {
	voices := make([]*fakeVoice, n)
	for i := range voices {
		voices[i] = &fakeVoice{note: -1}
	}
	now := new(float64)
	return NewPool(voices, func() float64 { return *now }), voices, now
}

func TestPoolStealsOldestVoice(t *testing.T) {
	p, voices, now := newFakePool(4)
	for i := 0; i < 4; i++ {
		*now = float64(i)
		if got := p.NoteOn(60+i, 100); got != i {
			t.Fatalf("note %d: got voice %d want %d", i, got, i)
		}
	}
	*now = 4
	if got := p.NoteOn(64, 100); got != 0 {
		t.Fatalf("steal: got voice %d want 0", got)
	}
	if voices[0].note != 64 || voices[0].ts != 4 {
		t.Fatalf("stolen voice not retriggered: %+v", voices[0])
	}
	*now = 5
	if got := p.NoteOn(65, 100); got != 1 {
		t.Fatalf("second steal: got voice %d want 1", got)
	}
}

func TestPoolTieGoesToLowestIndex(t *testing.T) {
	p, _, _ := newFakePool(3)
	for i := 0; i < 3; i++ {
		p.NoteOn(60+i, 100)
	}
	if got := p.NoteOn(70, 100); got != 0 {
		t.Fatalf("tie: got voice %d want 0", got)
	}
}

func TestPoolPrefersIdleVoice(t *testing.T) {
	p, voices, now := newFakePool(4)
	for i := 0; i < 4; i++ {
		*now = float64(i)
		p.NoteOn(60+i, 100)
	}
	p.NoteOff(62)
	if voices[2].releases != 1 {
		t.Fatalf("note off did not release voice 2")
	}
	*now = 10
	if got := p.NoteOn(70, 100); got != 2 {
		t.Fatalf("idle voice: got %d want 2", got)
	}
}

func TestPoolSustainPedalDefersRelease(t *testing.T) {
	p, voices, _ := newFakePool(4)
	p.NoteOn(60, 100)
	p.NoteOn(64, 100)
	p.PedalDown()
	p.NoteOff(60)
	if voices[0].releases != 0 {
		t.Fatalf("release not deferred by pedal")
	}
	p.PedalUp()
	if voices[0].releases != 1 {
		t.Fatalf("pedal up did not release note 60")
	}
	if voices[1].releases != 0 {
		t.Fatalf("pedal up released physically held note 64")
	}
}

func TestPoolIgnoresStrayEvents(t *testing.T) {
	p, voices, _ := newFakePool(2)
	p.NoteOn(60, 100)
	p.NoteOff(61)
	p.PedalUp()
	if voices[0].releases != 0 || !voices[0].playing {
		t.Fatalf("stray note-off or pedal-up released a voice")
	}
}

func TestPoolForceNoteOff(t *testing.T) {
	p, voices, _ := newFakePool(3)
	p.NoteOn(46, 100)
	p.NoteOn(42, 100)
	p.ForceNoteOff(46)
	if voices[0].stops != 1 || voices[0].releases != 0 {
		t.Fatalf("expected hard stop on 46: %+v", voices[0])
	}
	if voices[1].stops != 0 {
		t.Fatalf("unrelated voice stopped")
	}
}

func TestPoolPanicStopsEverything(t *testing.T) {
	p, voices, _ := newFakePool(3)
	p.NoteOn(60, 100)
	p.NoteOn(61, 100)
	p.PedalDown()
	p.Panic()
	for i, v := range voices {
		if v.stops != 1 || v.playing {
			t.Fatalf("voice %d not stopped: %+v", i, v)
		}
	}
	if p.Pedal() {
		t.Fatalf("pedal still down after panic")
	}
}

func TestPoolAllNotesOffHardStops(t *testing.T) {
	p, voices, _ := newFakePool(3)
	p.NoteOn(60, 100)
	p.NoteOn(64, 100)
	p.PedalDown()
	p.AllNotesOff()
	for i, v := range voices[:2] {
		if v.stops != 1 || v.releases != 0 || v.playing {
			t.Fatalf("voice %d: got stops=%d releases=%d want stops=1 releases=0", i, v.stops, v.releases)
		}
	}
	if p.Pedal() {
		t.Fatalf("pedal still down after AllNotesOff")
	}
	p.NoteOff(60)
	if voices[0].releases != 0 {
		t.Fatalf("note-off after AllNotesOff released a voice")
	}
}

func TestPoolSelfChokeKeepsNoteHeld(t *testing.T) {
	p, voices, _ := newFakePool(1)
	voices[0].onTrigger = func() { p.ForceNoteOff(60) }
	p.NoteOn(60, 100)
	p.NoteOff(60)
	if voices[0].releases != 1 {
		t.Fatalf("releases: got=%d want=1", voices[0].releases)
	}
}
