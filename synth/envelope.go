package synth

import (
	"errors"
	"math"

	"github.com/cwbudde/algo-polysynth/dsp"
	"github.com/cwbudde/algo-polysynth/graph"
)

// ErrMissingSustain is returned when an envelope is built without a sustain level.
var ErrMissingSustain = errors.New("synth: envelope sustain is required")

// EnvelopeSpec describes an ADSR shape. Nil fields keep their current value
// (or the default on construction): base 0, peak 1, durations 0, linear curves.
// Durations are in seconds. A curve of 0 is linear, a positive curve is an
// exponential decay constant.
type EnvelopeSpec struct {
	Base         *float64 `json:"base,omitempty"`
	Attack       *float64 `json:"attack,omitempty"`
	AttackCurve  *float64 `json:"attack_curve,omitempty"`
	Peak         *float64 `json:"peak,omitempty"`
	Hold         *float64 `json:"hold,omitempty"`
	Decay        *float64 `json:"decay,omitempty"`
	DecayCurve   *float64 `json:"decay_curve,omitempty"`
	Sustain      *float64 `json:"sustain,omitempty"`
	Release      *float64 `json:"release,omitempty"`
	ReleaseCurve *float64 `json:"release_curve,omitempty"`
}

// Float returns a pointer to v, for filling EnvelopeSpec literals.
func Float(v float64) *float64 { return &v }

type envelopeShape struct {
	base, peak, sustain                   float64
	attack, hold, decay, release          float64
	attackCurve, decayCurve, releaseCurve float64
}

func (s *envelopeShape) apply(spec EnvelopeSpec) {
	level := func(dst *float64, src *float64) {
		if src != nil {
			*dst = *src
		}
	}
	nonNeg := func(dst *float64, src *float64) {
		if src != nil {
			*dst = math.Max(*src, 0)
		}
	}
	level(&s.base, spec.Base)
	level(&s.peak, spec.Peak)
	level(&s.sustain, spec.Sustain)
	nonNeg(&s.attack, spec.Attack)
	nonNeg(&s.hold, spec.Hold)
	nonNeg(&s.decay, spec.Decay)
	nonNeg(&s.release, spec.Release)
	nonNeg(&s.attackCurve, spec.AttackCurve)
	nonNeg(&s.decayCurve, spec.DecayCurve)
	nonNeg(&s.releaseCurve, spec.ReleaseCurve)
}

// Stage is the phase an envelope is in at a given time.
type Stage int

const (
	StageIdle Stage = iota
	StageAttacking
	StageHolding
	StageDecaying
	StageSustaining
	StageReleasing
)

var stageNames = [...]string{"idle", "attacking", "holding", "decaying", "sustaining", "releasing"}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return "unknown"
	}
	return stageNames[s]
}

type triggerRecord struct {
	when    float64
	v       float64
	atktime float64
}

type releaseRecord struct {
	when    float64
	v       float64
	reltime float64
}

// Envelope schedules ADSR curves on the offset of a constant node. Retriggers
// and releases continue from the value the curve actually has at that moment.
type Envelope struct {
	out   graph.Constant
	shape envelopeShape
	trig  *triggerRecord
	rel   *releaseRecord
}

// NewEnvelope creates an envelope resting at its base value.
func NewEnvelope(g graph.Graph, spec EnvelopeSpec) (*Envelope, error) {
	if spec.Sustain == nil {
		return nil, ErrMissingSustain
	}
	e := &Envelope{shape: envelopeShape{peak: 1}}
	e.shape.apply(spec)
	e.out = g.NewConstant(e.shape.base)
	return e, nil
}

// Output is the envelope signal.
func (e *Envelope) Output() graph.Node { return e.out }

// Update merges the non-nil fields of spec. The new shape applies from the
// next trigger or release.
func (e *Envelope) Update(spec EnvelopeSpec) { e.shape.apply(spec) }

// ReleaseTime is the configured release duration.
func (e *Envelope) ReleaseTime() float64 { return e.shape.release }

// Trigger starts the attack at when, continuing from a release in progress.
func (e *Envelope) Trigger(when float64) {
	if e.trig != nil {
		e.Release(when)
	}
	s := e.shape
	v := s.base
	interruptedLine := false
	if e.rel != nil {
		elapsed := when - e.rel.when
		v = e.releasedValue(elapsed)
		interruptedLine = s.releaseCurve == 0 && elapsed < e.rel.reltime
	}
	atktime := s.attack
	if s.base != s.peak {
		atktime = dsp.Clamp(s.attack*(v-s.peak)/(s.base-s.peak), 0, s.attack)
	}
	e.rel = nil
	e.trig = &triggerRecord{when: when, v: v, atktime: atktime}

	p := e.out.Offset()
	p.CancelScheduledValues(when)
	if interruptedLine {
		p.LinearRampToValueAtTime(v, when)
	} else {
		p.SetValueAtTime(v, when)
	}
	t := scheduleSegment(p, s.attackCurve, v, s.peak, when, atktime)
	t += s.hold
	p.SetValueAtTime(s.peak, t)
	scheduleSegment(p, s.decayCurve, s.peak, s.sustain, t, s.decay)
}

// Release starts the release at when from the current triggered value. It is
// a no-op unless the envelope has been triggered.
func (e *Envelope) Release(when float64) {
	tr := e.trig
	if tr == nil {
		return
	}
	s := e.shape
	elapsed := when - tr.when
	if elapsed < 0 {
		elapsed = 0
	}
	v := e.triggeredValue(elapsed)
	decayStart := tr.atktime + s.hold
	interruptedLine := (s.attackCurve == 0 && elapsed < tr.atktime) ||
		(s.decayCurve == 0 && elapsed >= decayStart && elapsed < decayStart+s.decay)

	e.trig = nil
	e.rel = &releaseRecord{when: when, v: v, reltime: s.release}

	p := e.out.Offset()
	p.CancelScheduledValues(when)
	if interruptedLine {
		p.LinearRampToValueAtTime(v, when)
	} else {
		p.SetValueAtTime(v, when)
	}
	scheduleSegment(p, s.releaseCurve, v, s.base, when, s.release)
}

// Reset drops all state and snaps the output to base.
func (e *Envelope) Reset() {
	e.trig = nil
	e.rel = nil
	p := e.out.Offset()
	p.CancelScheduledValues(0)
	p.SetValue(e.shape.base)
}

// Value is the envelope level at now according to the scheduled curves.
func (e *Envelope) Value(now float64) float64 {
	switch {
	case e.trig != nil:
		return e.triggeredValue(now - e.trig.when)
	case e.rel != nil:
		return e.releasedValue(now - e.rel.when)
	}
	return e.shape.base
}

// Stage reports the phase at now.
func (e *Envelope) Stage(now float64) Stage {
	if tr := e.trig; tr != nil {
		elapsed := now - tr.when
		switch {
		case elapsed < tr.atktime:
			return StageAttacking
		case elapsed < tr.atktime+e.shape.hold:
			return StageHolding
		case elapsed < tr.atktime+e.shape.hold+e.shape.decay:
			return StageDecaying
		}
		return StageSustaining
	}
	if e.rel != nil && now-e.rel.when < e.rel.reltime {
		return StageReleasing
	}
	return StageIdle
}

func (e *Envelope) triggeredValue(elapsed float64) float64 {
	s := e.shape
	tr := e.trig
	if elapsed < 0 {
		elapsed = 0
	}
	if elapsed < tr.atktime {
		return CurveValue(s.attackCurve, tr.v, AdjustCurve(s.attackCurve, tr.v, s.peak), elapsed, tr.atktime)
	}
	elapsed -= tr.atktime
	if elapsed < s.hold {
		return s.peak
	}
	elapsed -= s.hold
	if elapsed < s.decay {
		return CurveValue(s.decayCurve, s.peak, AdjustCurve(s.decayCurve, s.peak, s.sustain), elapsed, s.decay)
	}
	return s.sustain
}

func (e *Envelope) releasedValue(elapsed float64) float64 {
	r := e.rel
	if elapsed < 0 {
		elapsed = 0
	}
	if elapsed >= r.reltime {
		return e.shape.base
	}
	rc := e.shape.releaseCurve
	return CurveValue(rc, r.v, AdjustCurve(rc, r.v, e.shape.base), elapsed, r.reltime)
}

// scheduleSegment moves p from `from` to `to` over dur starting at start and
// returns the segment end time. Exponential segments aim at the corrected
// asymptote and are pinned to `to` at their end.
func scheduleSegment(p graph.Param, curve float64, from float64, to float64, start float64, dur float64) float64 {
	if dur <= 0 {
		p.SetValueAtTime(to, start)
		return start
	}
	end := start + dur
	if curve == 0 {
		p.LinearRampToValueAtTime(to, end)
		return end
	}
	p.SetTargetAtTime(AdjustCurve(curve, from, to), start, dur/curve)
	p.SetValueAtTime(to, end)
	return end
}
