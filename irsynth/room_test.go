package irsynth

import (
	"math"
	"testing"
)

func TestGenerateRoomShape(t *testing.T) {
	cfg := DefaultRoomConfig()
	cfg.Duration = 0.5
	cfg.Peak = 0.8

	l, r, err := GenerateRoom(cfg)
	if err != nil {
		t.Fatalf("GenerateRoom: %v", err)
	}
	if len(l) != 24000 || len(r) != len(l) {
		t.Fatalf("unexpected lengths: L=%d R=%d", len(l), len(r))
	}

	peak := 0.0
	for i := range l {
		for _, v := range []float64{float64(l[i]), float64(r[i])} {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				t.Fatalf("non-finite sample at %d", i)
			}
			peak = math.Max(peak, math.Abs(v))
		}
	}
	if math.Abs(peak-0.8) > 1e-3 {
		t.Fatalf("peak: got=%f want=%f", peak, 0.8)
	}
}

func TestGenerateRoomDecays(t *testing.T) {
	cfg := DefaultRoomConfig()
	cfg.Fade = 0
	l, _, err := GenerateRoom(cfg)
	if err != nil {
		t.Fatalf("GenerateRoom: %v", err)
	}
	tenth := len(l) / 10
	head := energy(l[:tenth])
	tail := energy(l[len(l)-tenth:])
	if tail >= head*0.1 {
		t.Fatalf("tail does not decay: head=%f tail=%f", head, tail)
	}
}

func TestGenerateRoomDeterministicForSeed(t *testing.T) {
	cfg := DefaultRoomConfig()
	cfg.Duration = 0.2
	cfg.Seed = 99
	l1, r1, _ := GenerateRoom(cfg)
	l2, r2, _ := GenerateRoom(cfg)
	for i := range l1 {
		if l1[i] != l2[i] || r1[i] != r2[i] {
			t.Fatalf("sample %d differs between runs", i)
		}
	}

	cfg.Seed = 100
	l3, _, _ := GenerateRoom(cfg)
	same := true
	for i := range l1 {
		if l1[i] != l3[i] {
			same = false
			break
		}
	}
	if same {
		t.Fatalf("different seeds produced identical impulses")
	}
}

func TestGenerateRoomMonoWhenWidthZero(t *testing.T) {
	cfg := DefaultRoomConfig()
	cfg.Duration = 0.1
	cfg.Width = 0
	cfg.TailLevel = 0
	l, r, err := GenerateRoom(cfg)
	if err != nil {
		t.Fatalf("GenerateRoom: %v", err)
	}
	for i := range l {
		if l[i] != r[i] {
			t.Fatalf("channels differ at %d: L=%f R=%f", i, l[i], r[i])
		}
	}
}

func TestRoomConfigValidate(t *testing.T) {
	mutations := map[string]func(*RoomConfig){
		"sample rate": func(c *RoomConfig) { c.SampleRate = 4000 },
		"duration":    func(c *RoomConfig) { c.Duration = 0 },
		"reflections": func(c *RoomConfig) { c.Reflections = -1 },
		"tail":        func(c *RoomConfig) { c.TailLevel = -0.1 },
		"width":       func(c *RoomConfig) { c.Width = -1 },
		"brightness":  func(c *RoomConfig) { c.Brightness = 0 },
		"decay":       func(c *RoomConfig) { c.HighDecay = 0 },
		"peak":        func(c *RoomConfig) { c.Peak = 0 },
	}
	for name, mutate := range mutations {
		cfg := DefaultRoomConfig()
		mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
	cfg := DefaultRoomConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func energy(x []float32) float64 {
	var e float64
	for _, v := range x {
		e += float64(v) * float64(v)
	}
	return e
}
