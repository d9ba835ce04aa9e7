package sfz

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"math"
	"net/url"
	"path"
	"slices"
	"strconv"
	"strings"

	"github.com/cwbudde/algo-polysynth/graph"
	"github.com/cwbudde/algo-polysynth/synth"
)

// ErrNoRegions is returned for a document without regions.
var ErrNoRegions = errors.New("sfz: no regions")

// OpcodeError describes an opcode value that could not be used. The region
// keeps the opcode's default.
type OpcodeError struct {
	Region int
	Opcode string
	Value  any
	Err    error
}

func (e *OpcodeError) Error() string {
	return fmt.Sprintf("region %d: opcode %s=%v: %v", e.Region, e.Opcode, e.Value, e.Err)
}

func (e *OpcodeError) Unwrap() error { return e.Err }

// Parse decodes a JSON array of flat opcode objects. Sample paths resolve
// against base, the location of the document itself. Malformed opcode values
// are returned as warnings and do not fail the parse. Stereo pairs are linked
// before returning.
func Parse(data []byte, base string) ([]*Region, []*OpcodeError, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var docs []map[string]any
	if err := dec.Decode(&docs); err != nil {
		return nil, nil, fmt.Errorf("decode regions: %w", err)
	}
	if len(docs) == 0 {
		return nil, nil, ErrNoRegions
	}

	var warnings []*OpcodeError
	regions := make([]*Region, 0, len(docs))
	for i, doc := range docs {
		r := newRegion()
		// Sorted so that pitch_keycenter overrides the centre implied by key.
		for _, op := range slices.Sorted(maps.Keys(doc)) {
			if err := r.setOpcode(op, doc[op], base); err != nil {
				warnings = append(warnings, &OpcodeError{Region: i, Opcode: op, Value: doc[op], Err: err})
			}
		}
		regions = append(regions, r)
	}
	Pair(regions)
	return regions, warnings, nil
}

var errUnknownOpcode = errors.New("unsupported opcode")

func (r *Region) setOpcode(op string, raw any, base string) error {
	switch op {
	case "lokey", "hikey", "key", "pitch_keycenter":
		n, err := noteValue(raw)
		if err != nil {
			return err
		}
		r.raw[op] = n
		switch op {
		case "lokey":
			r.LoKey = n
		case "hikey":
			r.HiKey = n
		case "key":
			r.LoKey, r.HiKey, r.KeyCenter = n, n, n
		case "pitch_keycenter":
			r.KeyCenter = n
		}
	case "lovel", "hivel", "vel":
		v, err := number(raw)
		if err != nil {
			return err
		}
		n := int(v)
		r.raw[op] = n
		switch op {
		case "lovel":
			r.LoVel = n
		case "hivel":
			r.HiVel = n
		case "vel":
			r.LoVel, r.HiVel = n, n
		}
	case "tune":
		return setNumber(raw, &r.Tune)
	case "pan":
		v, err := number(raw)
		if err != nil {
			return err
		}
		r.Pan = normalisePan(v)
	case "fil_type":
		t, ok := filterType(fmt.Sprint(raw))
		if !ok {
			return fmt.Errorf("unknown filter type")
		}
		r.filter().Type = t
	case "cutoff":
		return setNumber(raw, &r.filter().Cutoff)
	case "resonance":
		v, err := number(raw)
		if err != nil {
			return err
		}
		r.filter().Q = 0.7071 * math.Pow(10, v/20)
	case "loop_start":
		v, err := number(raw)
		if err != nil {
			return err
		}
		r.LoopStart = &v
	case "loop_end":
		v, err := number(raw)
		if err != nil {
			return err
		}
		r.LoopEnd = &v
	case "loop_mode":
		m, ok := parseLoopMode(fmt.Sprint(raw))
		if !ok {
			return fmt.Errorf("unknown loop mode")
		}
		r.LoopMode = m
	case "ampeg_attack":
		return setNumber(raw, r.AmpEG.Attack)
	case "ampeg_hold":
		return setNumber(raw, r.AmpEG.Hold)
	case "ampeg_decay":
		return setNumber(raw, r.AmpEG.Decay)
	case "ampeg_sustain":
		v, err := number(raw)
		if err != nil {
			return err
		}
		*r.AmpEG.Sustain = math.Max(0, math.Min(1, v/100))
	case "ampeg_release":
		v, err := number(raw)
		if err != nil {
			return err
		}
		r.OneShot = v < 0
		*r.AmpEG.Release = math.Max(0, v)
	case "sample":
		s, ok := raw.(string)
		if !ok {
			return fmt.Errorf("sample must be a string")
		}
		resolved, err := resolve(base, s)
		if err != nil {
			return err
		}
		r.Sample = resolved
	case "sendNoteOffToNotes":
		notes, err := noteList(raw)
		if err != nil {
			return err
		}
		r.SendNoteOffToNotes = notes
	default:
		return errUnknownOpcode
	}
	return nil
}

// normalisePan maps SFZ pan in percent to [-1,1]. Values already inside
// [-1,1] are taken as normalised.
func normalisePan(v float64) float64 {
	if math.Abs(v) <= 1 {
		return v
	}
	return math.Max(-1, math.Min(1, v/100))
}

// filter returns the region filter, creating a lowpass at 20 kHz on first use.
func (r *Region) filter() *Filter {
	if r.Filter == nil {
		r.Filter = &Filter{Type: graph.FilterLowpass, Cutoff: 20000, Q: 0.7071}
	}
	return r.Filter
}

func filterType(s string) (graph.FilterType, bool) {
	switch {
	case strings.HasPrefix(s, "lpf"):
		return graph.FilterLowpass, true
	case strings.HasPrefix(s, "hpf"):
		return graph.FilterHighpass, true
	case strings.HasPrefix(s, "bpf"):
		return graph.FilterBandpass, true
	}
	return graph.FilterOff, false
}

func number(raw any) (float64, error) {
	switch v := raw.(type) {
	case json.Number:
		return v.Float64()
	case float64:
		return v, nil
	case string:
		return strconv.ParseFloat(strings.TrimSpace(v), 64)
	}
	return 0, fmt.Errorf("not a number")
}

func setNumber(raw any, dst *float64) error {
	v, err := number(raw)
	if err != nil {
		return err
	}
	*dst = v
	return nil
}

func noteValue(raw any) (int, error) {
	if s, ok := raw.(string); ok {
		return ParseNote(s)
	}
	v, err := number(raw)
	if err != nil {
		return 0, err
	}
	return int(v), nil
}

func noteList(raw any) ([]int, error) {
	switch v := raw.(type) {
	case []any:
		notes := make([]int, 0, len(v))
		for _, item := range v {
			n, err := noteValue(item)
			if err != nil {
				return nil, err
			}
			notes = append(notes, n)
		}
		return notes, nil
	case string:
		var notes []int
		for _, f := range strings.Fields(v) {
			n, err := ParseNote(f)
			if err != nil {
				return nil, err
			}
			notes = append(notes, n)
		}
		return notes, nil
	}
	n, err := noteValue(raw)
	if err != nil {
		return nil, err
	}
	return []int{n}, nil
}

// resolve locates sample relative to the document at base, which may be a URL
// or a file path.
func resolve(base string, sample string) (string, error) {
	sample = strings.ReplaceAll(sample, `\`, "/")
	ref, err := url.Parse(sample)
	if err != nil {
		return "", err
	}
	if base == "" || ref.IsAbs() || path.IsAbs(sample) {
		return sample, nil
	}
	b, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	if !b.IsAbs() {
		return path.Join(path.Dir(base), sample), nil
	}
	return b.ResolveReference(ref).String(), nil
}

// Envelope returns a complete copy of the region's amplitude envelope.
func (r *Region) Envelope() synth.EnvelopeSpec {
	return synth.EnvelopeSpec{
		Attack:  synth.Float(*r.AmpEG.Attack),
		Hold:    synth.Float(*r.AmpEG.Hold),
		Decay:   synth.Float(*r.AmpEG.Decay),
		Sustain: synth.Float(*r.AmpEG.Sustain),
		Release: synth.Float(*r.AmpEG.Release),
	}
}
