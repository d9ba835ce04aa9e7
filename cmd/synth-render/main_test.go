package main

import (
	"math"
	"path/filepath"
	"testing"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/cwbudde/algo-polysynth/graph"
	"github.com/cwbudde/algo-polysynth/graph/offline"
	"github.com/cwbudde/algo-polysynth/synth"
)

type call struct {
	at   float64
	kind eventKind
	note int
}

// recorder is an Instrument that logs the render time of each control call.
type recorder struct {
	ctx   *offline.Context
	calls []call
}

func (r *recorder) log(kind eventKind, note int) {
	r.calls = append(r.calls, call{at: r.ctx.Now(), kind: kind, note: note})
}

func (r *recorder) Kind() synth.Kind                          { return synth.KindFM }
func (r *recorder) NoteOn(note int, velocity int)             { r.log(evNoteOn, note) }
func (r *recorder) NoteOff(note int)                          { r.log(evNoteOff, note) }
func (r *recorder) PedalDown()                                { r.log(evPedalDown, 0) }
func (r *recorder) PedalUp()                                  { r.log(evPedalUp, 0) }
func (r *recorder) SetParamValues(map[string]float64)         {}
func (r *recorder) Params() *synth.ParamTable                 { return synth.NewParamTable(synth.MasterParams()) }
func (r *recorder) Connect(out graph.Input, verb graph.Input) {}
func (r *recorder) Disconnect()                               {}
func (r *recorder) AllNotesOff()                              {}
func (r *recorder) Panic()                                    {}

func TestRenderAppliesEventsOnTheirFrame(t *testing.T) {
	ctx := offline.NewContext(48000)
	rec := &recorder{ctx: ctx}
	events := []event{
		{at: 0.001, kind: evNoteOn, note: 60, velocity: 100},
		{at: 0.0105, kind: evNoteOff, note: 60},
		{at: 0.0105, kind: evPedalDown},
	}
	out := render(ctx, rec, events, 4800, stopRule{})
	if len(out) != 4800*2 {
		t.Fatalf("frames: got=%d want=%d", len(out)/2, 4800)
	}
	if len(rec.calls) != 3 {
		t.Fatalf("calls: got=%d want=3", len(rec.calls))
	}
	for i, c := range rec.calls {
		want := math.Round(events[i].at*48000) / 48000
		if math.Abs(c.at-want) > 1e-12 || c.kind != events[i].kind {
			t.Fatalf("call %d: got=%+v want at=%f kind=%d", i, c, want, events[i].kind)
		}
	}
}

func TestRenderStopsWhenQuiet(t *testing.T) {
	ctx := offline.NewContext(48000)
	rec := &recorder{ctx: ctx}
	stop := stopRule{threshold: 1e-5, hold: 4, minFrames: 1024}
	out := render(ctx, rec, singleNote(60, 100, 0), 48000, stop)
	if got, want := len(out)/2, 1024+3*blockSize; got != want {
		t.Fatalf("frames: got=%d want=%d", got, want)
	}
}

func TestSingleNote(t *testing.T) {
	ev := singleNote(64, 90, 0.5)
	if len(ev) != 2 || ev[0].kind != evNoteOn || ev[1].kind != evNoteOff || ev[1].at != 0.5 {
		t.Fatalf("unexpected events: %+v", ev)
	}
	if held := singleNote(64, 90, -1); len(held) != 1 {
		t.Fatalf("held note should have no note-off: %+v", held)
	}
}

func TestSortEventsPutsNoteOffFirst(t *testing.T) {
	events := []event{
		{at: 1, kind: evNoteOn, note: 60},
		{at: 0.5, kind: evPedalDown},
		{at: 1, kind: evNoteOff, note: 60},
	}
	sortEvents(events)
	if events[0].kind != evPedalDown || events[1].kind != evNoteOff || events[2].kind != evNoteOn {
		t.Fatalf("unexpected order: %+v", events)
	}
}

func TestReadMIDI(t *testing.T) {
	clock := smf.MetricTicks(960)
	var tr smf.Track
	tr.Add(0, smf.MetaTempo(120))
	tr.Add(0, midi.NoteOn(0, 60, 100))
	tr.Add(0, midi.NoteOn(9, 36, 110))
	tr.Add(clock.Ticks8th(), midi.ControlChange(0, sustainCC, 127))
	tr.Add(clock.Ticks8th(), midi.NoteOff(0, 60))
	tr.Add(clock.Ticks4th(), midi.ControlChange(0, sustainCC, 0))
	tr.Add(0, midi.ControlChange(0, 7, 100))
	tr.Close(0)

	s := smf.New()
	s.TimeFormat = clock
	if err := s.Add(tr); err != nil {
		t.Fatalf("add track: %v", err)
	}
	path := filepath.Join(t.TempDir(), "song.mid")
	if err := s.WriteFile(path); err != nil {
		t.Fatalf("write smf: %v", err)
	}

	all, err := readMIDI(path, -1)
	if err != nil {
		t.Fatalf("readMIDI: %v", err)
	}
	want := []event{
		{at: 0, kind: evNoteOn, note: 60, velocity: 100},
		{at: 0, kind: evNoteOn, note: 36, velocity: 110},
		{at: 0.25, kind: evPedalDown},
		{at: 0.5, kind: evNoteOff, note: 60},
		{at: 1.0, kind: evPedalUp},
	}
	if len(all) != len(want) {
		t.Fatalf("events: got=%d want=%d (%+v)", len(all), len(want), all)
	}
	for i, e := range all {
		if math.Abs(e.at-want[i].at) > 1e-6 || e.kind != want[i].kind || e.note != want[i].note || e.velocity != want[i].velocity {
			t.Fatalf("event %d: got=%+v want=%+v", i, e, want[i])
		}
	}

	drums, err := readMIDI(path, 9)
	if err != nil {
		t.Fatalf("readMIDI channel 9: %v", err)
	}
	if len(drums) != 1 || drums[0].note != 36 {
		t.Fatalf("channel filter: %+v", drums)
	}
	if end := lastEventTime(all); end != all[len(all)-1].at {
		t.Fatalf("last event: got=%f", end)
	}
}
