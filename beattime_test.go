package mtxt_test

import (
	"testing"

	"github.com/gomtxt/mtxt"
)

func TestBeatTimeParseAndString(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"0", "0.0"},
		{"4", "4.0"},
		{"0.5", "0.5"},
		{"4.25", "4.25"},
		{"1.00001", "1.00001"},
		{"1.100000", "1.1"},
	}
	for _, c := range cases {
		t.Run(c.in, func(t *testing.T) {
			bt, err := mtxt.ParseBeatTime(c.in)
			if err != nil {
				t.Fatalf("ParseBeatTime(%q): %v", c.in, err)
			}
			if got := bt.String(); got != c.want {
				t.Errorf("String() = %q, want %q", got, c.want)
			}
		})
	}
}

func TestBeatTimeParseInvalid(t *testing.T) {
	for _, in := range []string{"", "abc", "-1", "1.2.3", "1.a"} {
		if _, err := mtxt.ParseBeatTime(in); err == nil {
			t.Errorf("ParseBeatTime(%q): expected error, got nil", in)
		}
	}
}

func TestBeatTimeArithmetic(t *testing.T) {
	a := mtxt.FromFloat(4.5)
	b := mtxt.FromFloat(1.25)
	if got := a.Add(b).AsFloat(); !approx(got, 5.75) {
		t.Errorf("Add: got %v, want 5.75", got)
	}
	if got := a.Sub(b).AsFloat(); !approx(got, 3.25) {
		t.Errorf("Sub: got %v, want 3.25", got)
	}
	if got := b.Sub(a).AsFloat(); !approx(got, 0) {
		t.Errorf("Sub floors at zero: got %v, want 0", got)
	}
}

func TestBeatTimeCmp(t *testing.T) {
	a := mtxt.FromFloat(1.0)
	b := mtxt.FromFloat(2.0)
	if !a.Less(b) {
		t.Error("expected 1.0 < 2.0")
	}
	if a.Cmp(a) != 0 {
		t.Error("expected a.Cmp(a) == 0")
	}
	if b.Cmp(a) <= 0 {
		t.Error("expected b.Cmp(a) > 0")
	}
}

func TestBeatTimeQuantizeSnapsToGrid(t *testing.T) {
	// a slightly-off-grid sixteenth-note time should snap exactly onto
	// the grid when swing and jitter are both zero.
	t0 := mtxt.FromFloat(0.24)
	got := t0.Quantize(4, 0, 0).AsFloat()
	if !approx(got, 0.25) {
		t.Errorf("Quantize(4,0,0) on 0.24 = %v, want 0.25", got)
	}
}

func TestBeatTimeQuantizeNoGridIsNoop(t *testing.T) {
	t0 := mtxt.FromFloat(0.2412345)
	got := t0.Quantize(0, 0, 0)
	if got.Cmp(t0) != 0 {
		t.Errorf("Quantize(0,...) should be a no-op, got %v want %v", got.AsFloat(), t0.AsFloat())
	}
}

func approx(a, b float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d < 1e-6
}
