package transform_test

import (
	"testing"

	"github.com/gomtxt/mtxt"
	"github.com/gomtxt/mtxt/transform"
)

func buildStore(t *testing.T, records ...mtxt.Record) *mtxt.Store {
	t.Helper()
	s := mtxt.NewStore()
	for _, r := range records {
		s.Append(r)
	}
	s.Sort()
	return s
}

func TestTransposeShiftsNoteOn(t *testing.T) {
	n, err := mtxt.ParseNote("C4")
	if err != nil {
		t.Fatal(err)
	}
	s := buildStore(t, mtxt.NewNoteOn(1, mtxt.Zero(), n, 0.8, 0))
	out, diags := transform.Transpose(s, 12)
	if diags.HasErrors() || len(diags.Warnings) != 0 {
		t.Fatalf("unexpected diagnostics: %+v", diags)
	}
	got := out.Records()[0].(mtxt.NoteOn).Note
	if got.Octave != 5 || got.PitchClass != mtxt.PitchC {
		t.Errorf("Transpose(+12) = %+v, want C5", got)
	}
}

func TestTransposeWrapsPitchClass(t *testing.T) {
	n, _ := mtxt.ParseNote("B4")
	s := buildStore(t, mtxt.NewNoteOn(1, mtxt.Zero(), n, 0.8, 0))
	out, _ := transform.Transpose(s, 1)
	got := out.Records()[0].(mtxt.NoteOn).Note
	if got.PitchClass != mtxt.PitchC || got.Octave != 5 {
		t.Errorf("B4+1 = %+v, want C5", got)
	}
}

func TestTransposeDropsOutOfRangeNote(t *testing.T) {
	n, _ := mtxt.ParseNote("G9") // MIDI 127; +12 pushes it past the representable range
	s := buildStore(t, mtxt.NewNoteOn(1, mtxt.Zero(), n, 0.8, 0))
	out, diags := transform.Transpose(s, 12)
	if len(out.Records()) != 0 {
		t.Fatalf("expected out-of-range note dropped, got %+v", out.Records())
	}
	if len(diags.Warnings) != 1 {
		t.Fatalf("expected one warning, got %+v", diags.Warnings)
	}
}

func TestOffsetShiftsTime(t *testing.T) {
	n, _ := mtxt.ParseNote("C4")
	s := buildStore(t, mtxt.NewNoteOn(1, mtxt.FromFloat(1), n, 0.8, 0))
	out, diags := transform.Offset(s, 2.0)
	if len(diags.Warnings) != 0 {
		t.Fatalf("unexpected warnings: %+v", diags.Warnings)
	}
	got := out.Records()[0].Time().AsFloat()
	if !approx(got, 3.0) {
		t.Errorf("Offset(+2) time = %v, want 3.0", got)
	}
}

func TestOffsetDropsRecordsBeforeZero(t *testing.T) {
	n, _ := mtxt.ParseNote("C4")
	s := buildStore(t, mtxt.NewNoteOn(1, mtxt.FromFloat(1), n, 0.8, 0))
	out, diags := transform.Offset(s, -5.0)
	if len(out.Records()) != 0 {
		t.Fatalf("expected record landing before beat 0 dropped, got %+v", out.Records())
	}
	if len(diags.Warnings) != 1 {
		t.Fatalf("expected one warning, got %+v", diags.Warnings)
	}
}

func TestIncludeChannelsKeepsOnlyListed(t *testing.T) {
	n, _ := mtxt.ParseNote("C4")
	s := buildStore(t,
		mtxt.NewNoteOn(1, mtxt.Zero(), n, 0.8, 0),
		mtxt.NewNoteOn(2, mtxt.Zero(), n, 0.8, 1),
		mtxt.NewTempo(3, mtxt.Zero(), 120, nil),
	)
	out := transform.IncludeChannels(s, []int{0})
	recs := out.Records()
	if len(recs) != 2 {
		t.Fatalf("got %d records, want 2 (channel 0 note + channel-less tempo)", len(recs))
	}
}

func TestExcludeChannelsDropsListed(t *testing.T) {
	n, _ := mtxt.ParseNote("C4")
	s := buildStore(t,
		mtxt.NewNoteOn(1, mtxt.Zero(), n, 0.8, 0),
		mtxt.NewNoteOn(2, mtxt.Zero(), n, 0.8, 1),
	)
	out := transform.ExcludeChannels(s, []int{0})
	recs := out.Records()
	if len(recs) != 1 {
		t.Fatalf("got %d records, want 1", len(recs))
	}
	if recs[0].(mtxt.NoteOn).Channel != 1 {
		t.Errorf("expected surviving record on channel 1")
	}
}

func TestGroupByChannelOrdersByChannelThenTime(t *testing.T) {
	n, _ := mtxt.ParseNote("C4")
	s := buildStore(t,
		mtxt.NewNoteOn(1, mtxt.FromFloat(1), n, 0.8, 1),
		mtxt.NewNoteOn(2, mtxt.FromFloat(0), n, 0.8, 0),
		mtxt.NewNoteOn(3, mtxt.FromFloat(2), n, 0.8, 0),
	)
	out := transform.GroupByChannel(s)
	recs := out.Records()
	if len(recs) != 3 {
		t.Fatalf("got %d records, want 3", len(recs))
	}
	if recs[0].(mtxt.NoteOn).Channel != 0 || recs[1].(mtxt.NoteOn).Channel != 0 {
		t.Fatalf("expected channel 0's two records first, got %+v", recs)
	}
	if recs[2].(mtxt.NoteOn).Channel != 1 {
		t.Fatalf("expected channel 1 last, got %+v", recs[2])
	}
}

func approx(a, b float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d < 1e-6
}
