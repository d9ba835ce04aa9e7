package preset

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cwbudde/algo-polysynth/synth"
)

// File is the JSON schema for instrument patches.
type File struct {
	Instrument  string                     `json:"instrument"`
	RegionsPath string                     `json:"regions"`
	IRWavPath   string                     `json:"ir_wav_path"`
	Polyphony   *int                       `json:"polyphony"`
	Params      map[string]json.RawMessage `json:"params"`
}

// Patch is a loaded patch. Params still holds raw values; Values resolves
// them against an instrument's parameter table.
type Patch struct {
	Kind        synth.Kind
	RegionsPath string
	IRWavPath   string
	Polyphony   int
	Params      map[string]json.RawMessage
}

// NewDefaultPatch returns an eight-voice FM patch with no overrides.
func NewDefaultPatch() *Patch {
	return &Patch{Kind: synth.KindFM, Polyphony: 8}
}

// LoadJSON loads a patch file and applies it on top of the default patch.
// Relative paths are resolved against the patch file's directory.
func LoadJSON(path string) (*Patch, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var f File
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, err
	}

	p := NewDefaultPatch()
	if err := ApplyFile(p, &f); err != nil {
		return nil, err
	}

	base := filepath.Dir(path)
	for _, s := range []*string{&p.RegionsPath, &p.IRWavPath} {
		if *s != "" && !filepath.IsAbs(*s) && !strings.Contains(*s, "://") {
			*s = filepath.Clean(filepath.Join(base, *s))
		}
	}
	return p, nil
}

// ApplyFile applies a parsed patch file onto an existing patch.
func ApplyFile(dst *Patch, f *File) error {
	if dst == nil {
		return fmt.Errorf("nil destination patch")
	}
	if f == nil {
		return nil
	}

	if f.Instrument != "" {
		k, ok := synth.ParseKind(strings.TrimSpace(f.Instrument))
		if !ok {
			return fmt.Errorf("unknown instrument %q (expected fm, sampler or drumkit)", f.Instrument)
		}
		dst.Kind = k
	}
	if f.RegionsPath != "" {
		dst.RegionsPath = strings.TrimSpace(f.RegionsPath)
	}
	if f.IRWavPath != "" {
		dst.IRWavPath = strings.TrimSpace(f.IRWavPath)
	}
	if f.Polyphony != nil {
		if *f.Polyphony <= 0 {
			return fmt.Errorf("polyphony must be > 0")
		}
		dst.Polyphony = *f.Polyphony
	}
	if dst.Kind != synth.KindFM && dst.RegionsPath == "" {
		return fmt.Errorf("regions is required for a %s patch", dst.Kind)
	}

	if len(f.Params) == 0 {
		return nil
	}
	if dst.Params == nil {
		dst.Params = make(map[string]json.RawMessage, len(f.Params))
	}
	for k, v := range f.Params {
		dst.Params[k] = v
	}
	return nil
}

// Values validates the patch parameters against t. Enum parameters may be
// given as a choice name or an index; continuous values must lie in range.
func (p *Patch) Values(t *synth.ParamTable) (map[string]float64, error) {
	ids := make([]string, 0, len(p.Params))
	for id := range p.Params {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make(map[string]float64, len(ids))
	for _, id := range ids {
		spec, ok := t.Spec(id)
		if !ok {
			return nil, fmt.Errorf("params.%s: unknown parameter", id)
		}
		v, err := resolve(spec, p.Params[id])
		if err != nil {
			return nil, fmt.Errorf("params.%s: %w", id, err)
		}
		out[id] = v
	}
	return out, nil
}

func resolve(spec synth.ParamSpec, raw json.RawMessage) (float64, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '"' {
		var name string
		if err := json.Unmarshal(raw, &name); err != nil {
			return 0, err
		}
		for i, n := range spec.EnumNames {
			if n == name {
				return float64(i), nil
			}
		}
		if len(spec.EnumNames) == 0 {
			return 0, fmt.Errorf("expected a number, got %q", name)
		}
		return 0, fmt.Errorf("unknown choice %q (expected one of %s)", name, strings.Join(spec.EnumNames, ", "))
	}

	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, fmt.Errorf("expected a number: %w", err)
	}
	if n := len(spec.EnumNames); n > 0 {
		if v != float64(int(v)) || v < 0 || int(v) >= n {
			return 0, fmt.Errorf("must be a choice index in 0..%d", n-1)
		}
		return v, nil
	}
	if spec.Max > spec.Min && (v < spec.Min || v > spec.Max) {
		return 0, fmt.Errorf("must be in [%g,%g]", spec.Min, spec.Max)
	}
	return v, nil
}
