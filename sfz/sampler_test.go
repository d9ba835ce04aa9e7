package sfz

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"math"
	"strings"
	"sync"
	"testing"

	"github.com/cwbudde/algo-polysynth/graph"
	"github.com/cwbudde/algo-polysynth/graph/offline"
	"github.com/cwbudde/algo-polysynth/synth"
)

const testRate = 48000

// constBuffer is a mono buffer of the given length holding a constant level.
func constBuffer(seconds float64, level float32) *graph.Buffer {
	data := make([]float32, int(seconds*testRate))
	for i := range data {
		data[i] = level
	}
	return &graph.Buffer{SampleRate: testRate, Channels: [][]float32{data}}
}

func loadAll(regions []*Region, seconds float64) {
	for _, r := range regions {
		r.SetBuffer(constBuffer(seconds, 0.5))
	}
}

func newTestSampler(t *testing.T, doc string, voices int) (*offline.Context, *Sampler, *bytes.Buffer) {
	t.Helper()
	g := offline.NewContext(testRate)
	var logs bytes.Buffer
	cfg := DefaultSamplerConfig()
	cfg.MaxPolyphony = voices
	cfg.Logger = slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	s, err := NewSampler(g, mustParse(t, doc, ""), cfg)
	if err != nil {
		t.Fatalf("NewSampler: %v", err)
	}
	s.Connect(g.Destination(), nil)
	return g, s, &logs
}

func newTestDrumKit(t *testing.T, doc string, voices int) (*offline.Context, *DrumKit) {
	t.Helper()
	g := offline.NewContext(testRate)
	cfg := DefaultSamplerConfig()
	cfg.MaxPolyphony = voices
	cfg.Logger = slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	d, err := NewDrumKit(g, mustParse(t, doc, ""), cfg)
	if err != nil {
		t.Fatalf("NewDrumKit: %v", err)
	}
	d.Connect(g.Destination(), nil)
	return g, d
}

func playingNotes(voices []*SampleVoice, now float64) []int {
	var notes []int
	for _, v := range voices {
		if v.IsPlaying(now) {
			notes = append(notes, v.Note())
		}
	}
	return notes
}

func TestSamplerConfigValidate(t *testing.T) {
	cfg := DefaultSamplerConfig()
	cfg.MaxPolyphony = 0
	if _, err := NewSampler(offline.NewContext(testRate), []*Region{newRegion()}, cfg); err == nil {
		t.Fatalf("expected error for zero polyphony")
	}
	if _, err := NewSampler(offline.NewContext(testRate), nil, DefaultSamplerConfig()); !errors.Is(err, ErrNoRegions) {
		t.Fatalf("expected ErrNoRegions, got %v", err)
	}
}

func TestSamplerDropsUnloadedRegion(t *testing.T) {
	g, s, logs := newTestSampler(t, `[{"sample": "a.wav"}]`, 2)
	s.NoteOn(60, 100)
	if n := playingNotes(s.Voices(), g.Now()); len(n) != 0 {
		t.Fatalf("unloaded region played: %v", n)
	}
	if !strings.Contains(logs.String(), "no playable region") {
		t.Fatalf("expected debug log, got %s", logs.String())
	}
}

func TestSamplerStereoPairPlaysTwoSources(t *testing.T) {
	_, s, _ := newTestSampler(t, `[
		{"pan": -100, "key": 60, "sample": "l.wav"},
		{"pan": 100, "key": 60, "sample": "r.wav"}
	]`, 2)
	loadAll(s.Regions(), 1)
	s.NoteOn(60, 64)
	pans := s.Voices()[0].Sources()
	if len(pans) != 2 {
		t.Fatalf("expected two buffer sources, got %d", len(pans))
	}
	if pans[0].Pan().Value() != -1 || pans[1].Pan().Value() != 1 {
		t.Fatalf("pans: got=%f,%f want=-1,1", pans[0].Pan().Value(), pans[1].Pan().Value())
	}
}

func TestSamplerMonoRegionUsesRegionPan(t *testing.T) {
	_, s, _ := newTestSampler(t, `[{"pan": 30}]`, 1)
	loadAll(s.Regions(), 1)
	s.NoteOn(60, 64)
	pans := s.Voices()[0].Sources()
	if len(pans) != 1 || math.Abs(pans[0].Pan().Value()-0.3) > 1e-12 {
		t.Fatalf("expected one source at pan 0.3")
	}
}

func TestSamplerNonLoopingEndsWithSample(t *testing.T) {
	_, s, _ := newTestSampler(t, `[{"ampeg_release": 0.2}]`, 1)
	loadAll(s.Regions(), 1)
	s.NoteOn(60, 100)
	v := s.Voices()[0]
	if !v.IsPlaying(0.9) {
		t.Fatalf("held voice silent before the sample ends")
	}
	if v.IsPlaying(1.01) {
		t.Fatalf("held voice still playing after the sample ended")
	}
}

func TestSamplerLoopSustainStopsOnRelease(t *testing.T) {
	g, s, _ := newTestSampler(t, `[{
		"loop_start": 0, "loop_end": 24000, "loop_mode": "loop_sustain", "ampeg_release": 0.5
	}]`, 1)
	loadAll(s.Regions(), 1)
	s.NoteOn(60, 127)
	v := s.Voices()[0]

	out := g.Render(int(1.5 * testRate))
	if tail := out[len(out)-2]; tail < 0.1 {
		t.Fatalf("loop did not sustain past the sample end: %f", tail)
	}
	if !v.IsPlaying(g.Now() + 10) {
		t.Fatalf("held looping voice reported finished")
	}

	g.SetTime(10)
	s.NoteOff(60)
	if !v.IsPlaying(10.4) || v.IsPlaying(10.6) {
		t.Fatalf("release tail: playing(10.4)=%v playing(10.6)=%v", v.IsPlaying(10.4), v.IsPlaying(10.6))
	}
}

func TestSamplerOneShotLastsScaledSampleLength(t *testing.T) {
	_, s, _ := newTestSampler(t, `[{"pitch_keycenter": 60, "ampeg_release": -1}]`, 1)
	loadAll(s.Regions(), 1)
	s.NoteOn(48, 100)
	s.NoteOff(48)
	v := s.Voices()[0]
	if !v.IsPlaying(1.9) {
		t.Fatalf("one-shot an octave down should last two seconds")
	}
	if v.IsPlaying(2.1) {
		t.Fatalf("one-shot outlived its scaled length")
	}
}

func TestSamplerReleaseTailScalesWithRatio(t *testing.T) {
	_, s, _ := newTestSampler(t, `[{"loop_start": 0, "loop_end": 1000, "ampeg_release": 0.5}]`, 1)
	loadAll(s.Regions(), 1)
	s.NoteOn(48, 100)
	s.NoteOff(48)
	v := s.Voices()[0]
	if !v.IsPlaying(0.9) || v.IsPlaying(1.1) {
		t.Fatalf("release tail at ratio 2: playing(0.9)=%v playing(1.1)=%v", v.IsPlaying(0.9), v.IsPlaying(1.1))
	}
}

func TestSamplerTransposeParam(t *testing.T) {
	_, s, _ := newTestSampler(t, `[{"ampeg_release": -1}]`, 1)
	loadAll(s.Regions(), 1)
	s.SetParamValues(map[string]float64{ParamTranspose: 12})
	s.NoteOn(60, 100)
	if v := s.Voices()[0]; !v.IsPlaying(0.45) || v.IsPlaying(0.55) {
		t.Fatalf("transposed one-shot should last half a second")
	}
}

func TestSamplerUnknownParamIsLogged(t *testing.T) {
	_, s, logs := newTestSampler(t, `[{}]`, 1)
	s.SetParamValues(map[string]float64{"algorithm": 1, synth.ParamGain: 0.5})
	if !strings.Contains(logs.String(), "unknown parameter") {
		t.Fatalf("expected warning, logs: %s", logs.String())
	}
	if s.Params().Value(synth.ParamGain) != 0.5 {
		t.Fatalf("gain not applied")
	}
}

func TestSamplerStealsOldestVoice(t *testing.T) {
	g, s, _ := newTestSampler(t, `[{"loop_start": 0, "loop_end": 1000}]`, 4)
	loadAll(s.Regions(), 1)
	for i := 0; i < 4; i++ {
		g.SetTime(float64(i) * 0.1)
		s.NoteOn(60+i, 100)
	}
	g.SetTime(0.4)
	s.NoteOn(72, 100)
	if got := s.Voices()[0].Note(); got != 72 {
		t.Fatalf("expected voice 0 stolen, got note %d", got)
	}
}

func TestDrumKitChoke(t *testing.T) {
	g, d := newTestDrumKit(t, `[
		{"key": 42, "sendNoteOffToNotes": [46], "sample": "closed.wav"},
		{"key": 46, "sample": "open.wav"}
	]`, 4)
	loadAll(d.Regions(), 1)
	d.NoteOn(46, 100)
	g.SetTime(0.1)
	if n := playingNotes(d.Voices(), g.Now()); len(n) != 1 || n[0] != 46 {
		t.Fatalf("expected open hat playing, got %v", n)
	}
	d.NoteOn(42, 100)
	if n := playingNotes(d.Voices(), g.Now()); len(n) != 1 || n[0] != 42 {
		t.Fatalf("expected only the closed hat after choke, got %v", n)
	}
	if len(d.Voices()[0].Sources()) != 0 {
		t.Fatalf("choked voice kept its sources")
	}
}

func TestDrumKitIgnoresNoteOff(t *testing.T) {
	_, d := newTestDrumKit(t, `[{"key": 36, "ampeg_release": 0.1, "loop_start": 0, "loop_end": 100}]`, 2)
	loadAll(d.Regions(), 1)
	d.NoteOn(36, 100)
	d.PedalDown()
	d.NoteOff(36)
	d.PedalUp()
	v := d.Voices()[0]
	if !v.IsPlaying(0.9) {
		t.Fatalf("drum note cut short by note-off")
	}
	if v.IsPlaying(1.01) {
		t.Fatalf("drum note outlived its sample")
	}
	if d.Kind().String() != "drumkit" {
		t.Fatalf("kind: %s", d.Kind())
	}
}

type fakeLoader struct {
	mu      sync.Mutex
	buffers map[string]*graph.Buffer
	calls   map[string]int
}

func (l *fakeLoader) Load(ctx context.Context, url string, onSuccess func(*graph.Buffer), onError func(error)) {
	l.mu.Lock()
	l.calls[url]++
	b, ok := l.buffers[url]
	l.mu.Unlock()
	go func() {
		if !ok {
			onError(errors.New("not found"))
			return
		}
		onSuccess(b)
	}()
}

func TestSamplerLoadAndReload(t *testing.T) {
	loader := &fakeLoader{
		buffers: map[string]*graph.Buffer{"a.wav": constBuffer(0.5, 0.5)},
		calls:   map[string]int{},
	}
	g := offline.NewContext(testRate)
	cfg := DefaultSamplerConfig()
	cfg.Loader = loader
	cfg.Logger = slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	s, err := NewSampler(g, mustParse(t, `[
		{"hikey": 60, "sample": "a.wav"},
		{"lokey": 61, "sample": "b.wav"}
	]`, ""), cfg)
	if err != nil {
		t.Fatalf("NewSampler: %v", err)
	}

	if err := s.LoadSamples(context.Background()); err == nil || !strings.Contains(err.Error(), "b.wav") {
		t.Fatalf("expected b.wav failure, got %v", err)
	}
	a, b := s.Regions()[0], s.Regions()[1]
	if a.Buffer() == nil || a.Failed() || b.Buffer() != nil || !b.Failed() {
		t.Fatalf("load state: a=%v/%v b=%v/%v", a.Buffer() != nil, a.Failed(), b.Buffer() != nil, b.Failed())
	}

	loader.mu.Lock()
	loader.buffers["b.wav"] = constBuffer(0.5, 0.5)
	loader.mu.Unlock()
	if err := s.Reload(context.Background()); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if b.Buffer() == nil || b.Failed() {
		t.Fatalf("b.wav not loaded after reload")
	}
	if loader.calls["a.wav"] != 1 || loader.calls["b.wav"] != 2 {
		t.Fatalf("loaded samples requested again: %v", loader.calls)
	}
	s.NoteOn(70, 100)
	if n := playingNotes(s.Voices(), g.Now()); len(n) != 1 {
		t.Fatalf("reloaded region not playable: %v", n)
	}
}

func TestSamplerLoadWithoutLoader(t *testing.T) {
	_, s, _ := newTestSampler(t, `[{}]`, 1)
	if err := s.LoadSamples(context.Background()); err == nil {
		t.Fatalf("expected error without a loader")
	}
}

func TestDrumKitAllNotesOffStopsOneShots(t *testing.T) {
	g, d := newTestDrumKit(t, `[{"key": 42, "sample": "hat.wav"}]`, 2)
	loadAll(d.Regions(), 2)
	d.NoteOn(42, 100)
	g.SetTime(0.1)
	d.AllNotesOff()
	if n := playingNotes(d.Voices(), g.Now()); len(n) != 0 {
		t.Fatalf("playing after AllNotesOff: %v", n)
	}
	if len(d.Voices()[0].Sources()) != 0 {
		t.Fatalf("stopped voice kept its sources")
	}
}

func TestSamplerSelfChokeStillReleases(t *testing.T) {
	g, s, _ := newTestSampler(t, `[{
		"key": 60, "loop_start": 0, "loop_end": 100, "sendNoteOffToNotes": [60], "ampeg_release": 0.1
	}]`, 1)
	loadAll(s.Regions(), 1)
	s.NoteOn(60, 100)
	s.NoteOff(60)
	g.SetTime(5)
	if n := playingNotes(s.Voices(), g.Now()); len(n) != 0 {
		t.Fatalf("playing 5s after note-off: %v", n)
	}
}
