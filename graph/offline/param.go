package offline

import (
	"fmt"
	"math"
	"sort"
)

type eventKind int

const (
	evSet eventKind = iota
	evRamp
	evTarget
)

type event struct {
	kind  eventKind
	time  float64
	value float64
	tc    float64 // time constant, evTarget only
}

// Param is an automatable value with a sorted event timeline. Node outputs
// connected to it are summed (mono) onto the scheduled value.
type Param struct {
	id     int
	label  string
	ctx    *Context
	value  float64
	events []event
	inputs []renderNode
	dead   bool
}

func newParam(ctx *Context, owner string, name string, v float64) *Param {
	p := &Param{
		id:    ctx.allocID(),
		ctx:   ctx,
		value: v,
	}
	p.label = fmt.Sprintf("%s.%s", owner, name)
	ctx.params = append(ctx.params, p)
	return p
}

func (p *Param) Label() string { return p.label }

// Value returns the automation value at the context's current time, without
// connected inputs.
func (p *Param) Value() float64 {
	return p.ValueAt(p.ctx.Now())
}

// SetValue drops all scheduled events and sets the value immediately.
func (p *Param) SetValue(v float64) {
	p.events = p.events[:0]
	p.value = v
}

func (p *Param) SetValueAtTime(v float64, t float64) {
	p.insert(event{kind: evSet, time: t, value: v})
}

func (p *Param) LinearRampToValueAtTime(v float64, t float64) {
	p.insert(event{kind: evRamp, time: t, value: v})
}

func (p *Param) SetTargetAtTime(target float64, start float64, timeConstant float64) {
	if timeConstant <= 0 {
		p.SetValueAtTime(target, start)
		return
	}
	p.insert(event{kind: evTarget, time: start, value: target, tc: timeConstant})
}

// CancelScheduledValues removes every event at or after t.
func (p *Param) CancelScheduledValues(t float64) {
	keep := p.events[:0]
	for _, e := range p.events {
		if e.time < t {
			keep = append(keep, e)
		}
	}
	p.events = keep
}

// Events returns the number of scheduled events.
func (p *Param) Events() int { return len(p.events) }

func (p *Param) insert(e event) {
	i := sort.Search(len(p.events), func(i int) bool { return p.events[i].time > e.time })
	p.events = append(p.events, event{})
	copy(p.events[i+1:], p.events[i:])
	p.events[i] = e
}

// ValueAt evaluates the timeline at t.
func (p *Param) ValueAt(t float64) float64 {
	v := p.value
	prevT := 0.0
	var tgt *event
	for i := range p.events {
		e := &p.events[i]
		if e.time > t {
			if e.kind == evRamp {
				span := e.time - prevT
				if span <= 0 {
					return e.value
				}
				return v + (e.value-v)*(t-prevT)/span
			}
			break
		}
		switch e.kind {
		case evSet, evRamp:
			v = e.value
			tgt = nil
		case evTarget:
			if tgt != nil {
				v = approach(tgt, v, prevT, e.time)
			}
			tgt = e
		}
		prevT = e.time
	}
	if tgt != nil {
		return approach(tgt, v, prevT, t)
	}
	return v
}

func approach(tgt *event, from float64, t0 float64, t float64) float64 {
	x := (t - t0) / tgt.tc
	if x > 30 {
		return tgt.value
	}
	return tgt.value + (from-tgt.value)*math.Exp(-x)
}

// compact folds events that can no longer influence values at or after t.
func (p *Param) compact(t float64) {
	k := -1
	for i, e := range p.events {
		if e.time > t {
			break
		}
		if e.kind != evTarget {
			k = i
		}
	}
	if k <= 0 {
		return
	}
	p.value = p.events[k].value
	p.events[k].kind = evSet
	p.events = append(p.events[:0], p.events[k:]...)
}

func (p *Param) current() float64 {
	v := p.ValueAt(p.ctx.Now())
	for _, in := range p.inputs {
		l, r := pull(in)
		v += 0.5 * (l + r)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func (p *Param) receiverID() int { return p.id }

func (p *Param) addInput(n renderNode) { p.inputs = append(p.inputs, n) }

func (p *Param) removeInput(n renderNode) {
	for i, in := range p.inputs {
		if in == n {
			p.inputs = append(p.inputs[:i], p.inputs[i+1:]...)
			return
		}
	}
}
