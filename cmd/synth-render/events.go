package main

import (
	"fmt"
	"sort"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/cwbudde/algo-polysynth/synth"
)

const sustainCC = 64

type eventKind int

const (
	evNoteOn eventKind = iota
	evNoteOff
	evPedalDown
	evPedalUp
)

type event struct {
	at       float64 // seconds
	kind     eventKind
	note     int
	velocity int
}

func (e event) apply(inst synth.Instrument) {
	switch e.kind {
	case evNoteOn:
		inst.NoteOn(e.note, e.velocity)
	case evNoteOff:
		inst.NoteOff(e.note)
	case evPedalDown:
		inst.PedalDown()
	case evPedalUp:
		inst.PedalUp()
	}
}

// singleNote plays one note and releases it after releaseAfter seconds. A
// negative releaseAfter holds the note for the whole render.
func singleNote(note, velocity int, releaseAfter float64) []event {
	events := []event{{at: 0, kind: evNoteOn, note: note, velocity: velocity}}
	if releaseAfter >= 0 {
		events = append(events, event{at: releaseAfter, kind: evNoteOff, note: note})
	}
	return events
}

// readMIDI collects note and sustain events from every track of a Standard
// MIDI File. channel < 0 accepts all channels.
func readMIDI(path string, channel int) ([]event, error) {
	var events []event
	tr := smf.ReadTracks(path)
	tr.Do(func(te smf.TrackEvent) {
		msg := midi.Message(te.Message)
		at := float64(te.AbsMicroSeconds) / 1e6
		var ch, key, vel, cc, val uint8
		switch {
		case msg.GetNoteStart(&ch, &key, &vel):
			if accept(channel, ch) {
				events = append(events, event{at: at, kind: evNoteOn, note: int(key), velocity: int(vel)})
			}
		case msg.GetNoteEnd(&ch, &key):
			if accept(channel, ch) {
				events = append(events, event{at: at, kind: evNoteOff, note: int(key)})
			}
		case msg.GetControlChange(&ch, &cc, &val):
			if cc != sustainCC || !accept(channel, ch) {
				return
			}
			kind := evPedalUp
			if val >= 64 {
				kind = evPedalDown
			}
			events = append(events, event{at: at, kind: kind})
		}
	})
	if err := tr.Error(); err != nil {
		return nil, fmt.Errorf("read midi %s: %w", path, err)
	}
	sortEvents(events)
	return events, nil
}

func accept(want int, ch uint8) bool { return want < 0 || int(ch) == want }

// sortEvents orders by time. At equal times note-offs come before note-ons
// so a retriggered note is not released straight away.
func sortEvents(events []event) {
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].at != events[j].at {
			return events[i].at < events[j].at
		}
		return events[i].kind == evNoteOff && events[j].kind == evNoteOn
	})
}

func lastEventTime(events []event) float64 {
	end := 0.0
	for _, e := range events {
		end = max(end, e.at)
	}
	return end
}
