package mtxt

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// PitchClass is one of the twelve canonical pitch classes, normalized so
// that flats collapse onto their enharmonic sharp spelling (Db -> C#).
type PitchClass int

const (
	PitchC PitchClass = iota
	PitchCSharp
	PitchD
	PitchDSharp
	PitchE
	PitchF
	PitchFSharp
	PitchG
	PitchGSharp
	PitchA
	PitchASharp
	PitchB
)

var pitchClassNames = [...]string{
	"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B",
}

func (p PitchClass) String() string {
	if p < PitchC || p > PitchB {
		return "?"
	}
	return pitchClassNames[p]
}

var titleCaser = cases.Title(language.Und)

// ParsePitchClass parses a case-insensitive pitch class with an optional
// "#"/"b" accidental, normalizing flats to their sharp spelling.
func ParsePitchClass(s string) (PitchClass, error) {
	s = titleCaser.String(strings.ToLower(strings.TrimSpace(s)))
	if s == "" {
		return 0, fmt.Errorf("mtxt: empty pitch class")
	}
	letter := s[0]
	accidental := byte(0)
	if len(s) > 1 {
		accidental = s[1]
	}
	natural := map[byte]PitchClass{
		'C': PitchC, 'D': PitchD, 'E': PitchE, 'F': PitchF,
		'G': PitchG, 'A': PitchA, 'B': PitchB,
	}
	base, ok := natural[letter]
	if !ok {
		return 0, fmt.Errorf("mtxt: invalid pitch class %q", s)
	}
	switch accidental {
	case 0:
		return base, nil
	case '#':
		return (base + 1) % 12, nil
	case 'b', 'B':
		return (base + 11) % 12, nil
	default:
		return 0, fmt.Errorf("mtxt: invalid accidental in %q", s)
	}
}

// Note is a fully-resolved 3-tuple (pitch class, octave, cents) per §3/§4.A.
type Note struct {
	PitchClass PitchClass
	Octave     int
	Cents      float64 // in [-99.0, +99.0]
}

// MIDINumber returns the MIDI note number for this note (not range-checked;
// the model tolerates any signed octave, per §4.A — range validation happens
// at MIDI export time).
func (n Note) MIDINumber() int {
	return 12*(n.Octave+1) + int(n.PitchClass)
}

// String renders the canonical uppercase form, e.g. "C#4+25.0".
func (n Note) String() string {
	var b strings.Builder
	b.WriteString(n.PitchClass.String())
	b.WriteString(strconv.Itoa(n.Octave))
	if n.Cents != 0 {
		if n.Cents > 0 {
			b.WriteByte('+')
		}
		b.WriteString(formatFloat(n.Cents))
	}
	return b.String()
}

var noteRe = regexp.MustCompile(`(?i)^([A-G])(#|b)?(-?\d+)([+-]\d+(?:\.\d+)?)?$`)

// ParseNote parses a literal note identifier (not an alias reference). See
// §4.A for the grammar; case is insignificant on input.
func ParseNote(s string) (Note, error) {
	m := noteRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return Note{}, fmt.Errorf("mtxt: invalid note %q", s)
	}
	pc, err := ParsePitchClass(m[1] + m[2])
	if err != nil {
		return Note{}, err
	}
	octave, err := strconv.Atoi(m[3])
	if err != nil {
		return Note{}, fmt.Errorf("mtxt: invalid octave in %q", s)
	}
	cents := 0.0
	if m[4] != "" {
		cents, err = strconv.ParseFloat(m[4], 64)
		if err != nil {
			return Note{}, fmt.Errorf("mtxt: invalid cents in %q", s)
		}
	}
	if cents < -99.0 || cents > 99.0 {
		return Note{}, fmt.Errorf("mtxt: cents %v out of [-99,99]", cents)
	}
	return Note{PitchClass: pc, Octave: octave, Cents: cents}, nil
}

// NoteTarget is either a literal Note or a symbolic alias reference, resolved
// against the process-order alias table during the parser's finalize pass.
type NoteTarget struct {
	Note      *Note
	AliasName string
}

func (t NoteTarget) String() string {
	if t.Note != nil {
		return t.Note.String()
	}
	return t.AliasName
}

// ParseNoteTarget parses either a literal note or, failing that, treats the
// token as a symbolic alias name to resolve later.
func ParseNoteTarget(s string) NoteTarget {
	if n, err := ParseNote(s); err == nil {
		return NoteTarget{Note: &n}
	}
	return NoteTarget{AliasName: s}
}

// AliasDefinition names a set of concrete notes an alias expands to.
type AliasDefinition struct {
	Name  string
	Notes []Note
}
