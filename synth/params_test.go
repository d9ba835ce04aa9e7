package synth

import (
	"errors"
	"math"
	"testing"
)

func testTable() *ParamTable {
	return NewParamTable([]ParamSpec{
		{ID: "cutoff", Default: 1000, Min: 20, Max: 20000},
		{ID: "shape", Default: 1, EnumNames: []string{"a", "b", "c"}},
	})
}

func TestParamTableDefaults(t *testing.T) {
	tbl := testTable()
	p, ok := tbl.GetParamByID("shape")
	if !ok || p.Value != 1 || len(p.EnumNames) != 3 {
		t.Fatalf("shape: got=%+v ok=%v", p, ok)
	}
	if _, ok := tbl.GetParamByID("missing"); ok {
		t.Fatalf("missing param reported present")
	}
}

func TestParamTableClampsContinuous(t *testing.T) {
	tbl := testTable()
	v, err := tbl.Set("cutoff", 50000)
	if err != nil || v != 20000 {
		t.Fatalf("clamp high: got=%f err=%v", v, err)
	}
	v, err = tbl.Set("cutoff", 1)
	if err != nil || v != 20 {
		t.Fatalf("clamp low: got=%f err=%v", v, err)
	}
	if _, err := tbl.Set("cutoff", math.NaN()); !errors.Is(err, ErrInvalidValue) {
		t.Fatalf("NaN accepted: %v", err)
	}
}

func TestParamTableRejectsBadEnum(t *testing.T) {
	tbl := testTable()
	for _, bad := range []float64{3, -1, 1.5} {
		if _, err := tbl.Set("shape", bad); !errors.Is(err, ErrInvalidValue) {
			t.Fatalf("shape=%v: expected ErrInvalidValue, got %v", bad, err)
		}
	}
	if tbl.Value("shape") != 1 {
		t.Fatalf("rejected value changed the table: %f", tbl.Value("shape"))
	}
	if i, ok := tbl.EnumIndex("shape", "c"); !ok || i != 2 {
		t.Fatalf("EnumIndex: got=%d ok=%v", i, ok)
	}
}

func TestParamTableUnknownID(t *testing.T) {
	if _, err := testTable().Set("nope", 1); !errors.Is(err, ErrUnknownParam) {
		t.Fatalf("expected ErrUnknownParam, got %v", err)
	}
}

func TestFMParamIDsAreUnique(t *testing.T) {
	seen := map[string]bool{}
	for _, s := range FMParams() {
		if seen[s.ID] {
			t.Fatalf("duplicate param %q", s.ID)
		}
		seen[s.ID] = true
	}
	if !seen["osc4_lfo2_pan"] || !seen[ParamMasterCutoff] {
		t.Fatalf("expected oscillator and master params")
	}
}
