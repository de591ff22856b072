package mtxt_test

import (
	"testing"

	"github.com/gomtxt/mtxt"
)

func TestParseNote(t *testing.T) {
	cases := []struct {
		in         string
		pc         mtxt.PitchClass
		octave     int
		cents      float64
		shouldFail bool
	}{
		{"C4", mtxt.PitchC, 4, 0, false},
		{"c4", mtxt.PitchC, 4, 0, false},
		{"C#4", mtxt.PitchCSharp, 4, 0, false},
		{"Db4", mtxt.PitchCSharp, 4, 0, false},
		{"A-1", mtxt.PitchA, -1, 0, false},
		{"C4+25", mtxt.PitchC, 4, 25, false},
		{"C4-10.5", mtxt.PitchC, 4, -10.5, false},
		{"C4+150", 0, 0, 0, true},
		{"H4", 0, 0, 0, true},
		{"", 0, 0, 0, true},
	}
	for _, c := range cases {
		t.Run(c.in, func(t *testing.T) {
			n, err := mtxt.ParseNote(c.in)
			if c.shouldFail {
				if err == nil {
					t.Fatalf("expected error parsing %q", c.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseNote(%q): %v", c.in, err)
			}
			if n.PitchClass != c.pc || n.Octave != c.octave || !approx(n.Cents, c.cents) {
				t.Errorf("ParseNote(%q) = %+v, want {%v %v %v}", c.in, n, c.pc, c.octave, c.cents)
			}
		})
	}
}

func TestNoteMIDINumber(t *testing.T) {
	n, err := mtxt.ParseNote("C4")
	if err != nil {
		t.Fatal(err)
	}
	if got := n.MIDINumber(); got != 60 {
		t.Errorf("C4.MIDINumber() = %d, want 60", got)
	}
}

func TestNoteRoundTripString(t *testing.T) {
	n, err := mtxt.ParseNote("C#4+25")
	if err != nil {
		t.Fatal(err)
	}
	if got := n.String(); got != "C#4+25.0" {
		t.Errorf("String() = %q, want %q", got, "C#4+25.0")
	}
}

func TestParseNoteTargetFallsBackToAlias(t *testing.T) {
	target := mtxt.ParseNoteTarget("lead_melody")
	if target.Note != nil {
		t.Fatal("expected alias fallback, got a literal note")
	}
	if target.AliasName != "lead_melody" {
		t.Errorf("AliasName = %q, want %q", target.AliasName, "lead_melody")
	}
}
