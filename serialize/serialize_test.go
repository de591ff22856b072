package serialize_test

import (
	"strings"
	"testing"

	"github.com/gomtxt/mtxt/parser"
	"github.com/gomtxt/mtxt/serialize"
)

func TestSerializeRoundTripsMinimalFile(t *testing.T) {
	src := "mtxt 1.0\nch=0\n0 note C4 vel=0.9 offvel=1.0 dur=1.0\n"
	v, store, diags := parser.Parse(src)
	if diags.HasErrors() {
		t.Fatalf("parse errors: %v", diags.Errors)
	}
	out := serialize.Serialize(v, store, serialize.Options{})
	if !strings.HasPrefix(out, "mtxt 1.0\n") {
		t.Fatalf("expected version header, got %q", out)
	}
	if !strings.Contains(out, "note C4") {
		t.Errorf("expected a note record in output, got %q", out)
	}
}

func TestSerializeApplyDirectivesDropsDirectiveLines(t *testing.T) {
	src := "mtxt 1.0\nch=0\nvel=0.9\n0 note C4\n"
	v, store, diags := parser.Parse(src)
	if diags.HasErrors() {
		t.Fatalf("parse errors: %v", diags.Errors)
	}
	out := serialize.Serialize(v, store, serialize.Options{ApplyDirectives: true})
	if strings.Contains(out, "vel=0.9\n") && strings.Count(out, "vel=0.9") > 1 {
		t.Errorf("expected directive collapsed inline only, got %q", out)
	}
	if !strings.Contains(out, "vel=0.9") {
		t.Errorf("expected velocity materialized inline on the note record, got %q", out)
	}
}

func TestSerializeExtractDirectivesEmitsLeadingDefault(t *testing.T) {
	src := "mtxt 1.0\nch=3\n0 note C4\n1 note D4\n"
	v, store, diags := parser.Parse(src)
	if diags.HasErrors() {
		t.Fatalf("parse errors: %v", diags.Errors)
	}
	out := serialize.Serialize(v, store, serialize.Options{ExtractDirectives: true})
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) < 2 || !strings.HasPrefix(lines[1], "ch=3") {
		t.Fatalf("expected a leading ch=3 directive, got %q", out)
	}
}

func TestSerializeRoundsValuesThroughFloat32(t *testing.T) {
	src := "mtxt 1.0\n0 cc modwheel 123456789123.456 ch=0\n"
	v, store, diags := parser.Parse(src)
	if diags.HasErrors() {
		t.Fatalf("parse errors: %v", diags.Errors)
	}
	out := serialize.Serialize(v, store, serialize.Options{})
	if !strings.Contains(out, "123456790528.0") {
		t.Errorf("expected single-precision-rounded value 123456790528.0, got %q", out)
	}
}

func TestSortLinesOrdersBodyLexicographically(t *testing.T) {
	text := "mtxt 1.0\nb line\na line\n"
	got := serialize.SortLines(text)
	want := "mtxt 1.0\na line\nb line\n"
	if got != want {
		t.Errorf("SortLines = %q, want %q", got, want)
	}
}
