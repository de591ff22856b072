package parser_test

import (
	"testing"

	"github.com/gomtxt/mtxt"
	"github.com/gomtxt/mtxt/parser"
)

func TestParseMinimalFile(t *testing.T) {
	src := "mtxt 1.0\nch=0\n0 note C4 vel=0.9\n1 note D4\n"
	v, store, diags := parser.Parse(src)
	if diags.HasErrors() {
		t.Fatalf("unexpected errors: %v", diags.Errors)
	}
	if v.Major != 1 || v.Minor != 0 {
		t.Fatalf("version = %d.%d, want 1.0", v.Major, v.Minor)
	}
	var notes int
	for _, r := range store.Records() {
		if ne, ok := r.(mtxt.NoteEvent); ok {
			notes++
			if ne.Channel != 0 {
				t.Errorf("channel default not applied, got %d", ne.Channel)
			}
		}
	}
	if notes != 2 {
		t.Fatalf("got %d NoteEvents, want 2", notes)
	}
}

func TestParseMissingVersionIsAnError(t *testing.T) {
	_, _, diags := parser.Parse("ch=0\n0 note C4\n")
	if !diags.HasErrors() {
		t.Fatal("expected a missing-version error")
	}
}

func TestParseMissingChannelIsAnError(t *testing.T) {
	_, _, diags := parser.Parse("mtxt 1.0\n0 note C4\n")
	if !diags.HasErrors() {
		t.Fatal("expected a missing-channel reference error")
	}
}

func TestParseTimedUnscopedMetaIsGlobal(t *testing.T) {
	src := "mtxt 1.0\n1.0 meta title hello\n"
	_, store, diags := parser.Parse(src)
	if diags.HasErrors() {
		t.Fatalf("unexpected errors: %v", diags.Errors)
	}
	var found bool
	for _, r := range store.Records() {
		if m, ok := r.(mtxt.Meta); ok {
			found = true
			if m.Scope != mtxt.ScopeGlobal {
				t.Errorf("expected timed unscoped meta to be global, got scope %v", m.Scope)
			}
			if !m.HasTime() || m.Time().AsFloat() != 1.0 {
				t.Errorf("expected meta to keep its time prefix, got HasTime=%v", m.HasTime())
			}
		}
	}
	if !found {
		t.Fatal("expected a decoded Meta record")
	}
}

func TestParseTimedMetaGlobalKeepsTime(t *testing.T) {
	src := "mtxt 1.0\n2.0 meta global title hello\n"
	_, store, diags := parser.Parse(src)
	if diags.HasErrors() {
		t.Fatalf("unexpected errors: %v", diags.Errors)
	}
	var found bool
	for _, r := range store.Records() {
		if m, ok := r.(mtxt.Meta); ok {
			found = true
			if !m.HasTime() || m.Time().AsFloat() != 2.0 {
				t.Errorf("expected meta global to keep its time prefix, got HasTime=%v", m.HasTime())
			}
		}
	}
	if !found {
		t.Fatal("expected a decoded Meta record")
	}
}

func TestParseAliasExpansion(t *testing.T) {
	src := "mtxt 1.0\nch=0\nalias chord C4, E4, G4\n0 on chord vel=0.5\n"
	_, store, diags := parser.Parse(src)
	if diags.HasErrors() {
		t.Fatalf("unexpected errors: %v", diags.Errors)
	}
	var onCount int
	for _, r := range store.Records() {
		if _, ok := r.(mtxt.NoteOn); ok {
			onCount++
		}
	}
	if onCount != 3 {
		t.Fatalf("alias expansion produced %d NoteOn records, want 3", onCount)
	}
}

func TestParseUnknownAliasIsReferenceError(t *testing.T) {
	_, _, diags := parser.Parse("mtxt 1.0\nch=0\n0 on nosuchalias\n")
	if !diags.HasErrors() {
		t.Fatal("expected a reference error for an undefined alias")
	}
}

func TestParseTuningAccumulates(t *testing.T) {
	src := "mtxt 1.0\nch=0\n0 tuning C -10\n1 note C4 vel=0.5\n"
	_, store, diags := parser.Parse(src)
	if diags.HasErrors() {
		t.Fatalf("unexpected errors: %v", diags.Errors)
	}
	for _, r := range store.Records() {
		if ne, ok := r.(mtxt.NoteEvent); ok {
			n := ne.Note.Note
			if n == nil || !approxEq(n.Cents, -10) {
				t.Errorf("expected tuned cents -10, got %+v", ne.Note)
			}
		}
	}
}

func TestParseEventOrderingByTimeThenRank(t *testing.T) {
	// At the same beat time, NoteOff must sort before NoteOn (§4.C rank table).
	src := "mtxt 1.0\nch=0\n1 on C4 vel=0.5\n1 off C4\n"
	_, store, diags := parser.Parse(src)
	if diags.HasErrors() {
		t.Fatalf("unexpected errors: %v", diags.Errors)
	}
	// The ch=0 directive is stored too; being untimed, it sorts first.
	recs := store.Records()
	if len(recs) != 3 {
		t.Fatalf("got %d records, want 3 (directive, off, on)", len(recs))
	}
	if _, ok := recs[1].(mtxt.NoteOff); !ok {
		t.Errorf("first record at shared time should be NoteOff, got %T", recs[1])
	}
	if _, ok := recs[2].(mtxt.NoteOn); !ok {
		t.Errorf("second record at shared time should be NoteOn, got %T", recs[2])
	}
}

func TestParseTimeSignatureValidatesDenominator(t *testing.T) {
	_, _, diags := parser.Parse("mtxt 1.0\n0 timesig 4/3\n")
	if !diags.HasErrors() {
		t.Fatal("expected an error for an invalid time signature denominator")
	}
}

func TestParseCCChannelWide(t *testing.T) {
	src := "mtxt 1.0\nch=2\n0 cc pan 0.5\n"
	_, store, diags := parser.Parse(src)
	if diags.HasErrors() {
		t.Fatalf("unexpected errors: %v", diags.Errors)
	}
	found := false
	for _, r := range store.Records() {
		if cc, ok := r.(mtxt.CC); ok {
			found = true
			if cc.Channel != 2 || cc.Controller != "pan" || !approxEq(cc.Value, 0.5) {
				t.Errorf("unexpected cc record: %+v", cc)
			}
		}
	}
	if !found {
		t.Fatal("expected a CC record")
	}
}

func TestParseCCOutOfRangeIsRangeError(t *testing.T) {
	_, _, diags := parser.Parse("mtxt 1.0\nch=0\n0 cc pan 5.0\n")
	if !diags.HasErrors() {
		t.Fatal("expected a range error for pan=5.0")
	}
}

func approxEq(a, b float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d < 1e-6
}
