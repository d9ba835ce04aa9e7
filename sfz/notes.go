package sfz

import (
	"fmt"
	"strconv"
	"strings"
)

var noteOffsets = map[byte]int{'c': 0, 'd': 2, 'e': 4, 'f': 5, 'g': 7, 'a': 9, 'b': 11}

// ParseNote accepts a MIDI note number ("61") or a note name ("c4", "f#3",
// "eb2"). Octave 4 holds middle C (60).
func ParseNote(s string) (int, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return 0, fmt.Errorf("empty note")
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	base, ok := noteOffsets[s[0]]
	if !ok {
		return 0, fmt.Errorf("invalid note name %q", s)
	}
	rest := s[1:]
	switch {
	case strings.HasPrefix(rest, "#"):
		base++
		rest = rest[1:]
	case strings.HasPrefix(rest, "b") && len(rest) > 1:
		base--
		rest = rest[1:]
	}
	octave, err := strconv.Atoi(rest)
	if err != nil {
		return 0, fmt.Errorf("invalid octave in %q", s)
	}
	return (octave+1)*12 + base, nil
}
