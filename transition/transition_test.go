package transition_test

import (
	"testing"

	"github.com/gomtxt/mtxt"
	"github.com/gomtxt/mtxt/transition"
)

func TestCurveEndpointsAreExact(t *testing.T) {
	for _, alpha := range []float64{-1, -0.5, 0, 0.5, 1, 3} {
		if got := transition.Curve(0, alpha); got != 0 {
			t.Errorf("Curve(0, %v) = %v, want 0", alpha, got)
		}
		if got := transition.Curve(1, alpha); got != 1 {
			t.Errorf("Curve(1, %v) = %v, want 1", alpha, got)
		}
	}
}

func TestCurveLinearAtZeroAlpha(t *testing.T) {
	for _, s := range []float64{0.1, 0.25, 0.5, 0.75, 0.9} {
		if got := transition.Curve(s, 0); !approx(got, s) {
			t.Errorf("Curve(%v, 0) = %v, want %v", s, got, s)
		}
	}
}

func TestSegmentValueAtClampsOutsideRange(t *testing.T) {
	seg := transition.Segment{
		StartTime: mtxt.Zero(),
		EndTime:   mtxt.FromFloat(4),
		StartVal:  0,
		EndVal:    1,
		Curve:     0,
	}
	if got := seg.ValueAt(mtxt.FromFloat(-1)); got != 0 {
		t.Errorf("before start: got %v, want 0", got)
	}
	if got := seg.ValueAt(mtxt.FromFloat(10)); got != 1 {
		t.Errorf("after end: got %v, want 1", got)
	}
	if got := seg.ValueAt(mtxt.FromFloat(2)); !approx(got, 0.5) {
		t.Errorf("midpoint linear: got %v, want 0.5", got)
	}
}

func TestBuildSegmentsPreemptionTruncatesEarlier(t *testing.T) {
	points := []transition.ResolvedPoint{
		{Time: mtxt.FromFloat(0), Value: 0, Transition: mtxt.Transition{}},
		{Time: mtxt.FromFloat(4), Value: 1, Transition: mtxt.Transition{Time: mtxt.FromFloat(4)}},
		{Time: mtxt.FromFloat(2), Value: 0.2, Transition: mtxt.Transition{Time: mtxt.FromFloat(2)}},
	}
	transition.SortByTime(points)
	segs := transition.BuildSegments(points)
	if len(segs) != 3 {
		t.Fatalf("got %d segments, want 3", len(segs))
	}
	// after sorting, the glide ending at beat 2 comes before the glide
	// ending at beat 4; the later glide starts at beat 0, before the earlier
	// one finishes, so it preempts and truncates the earlier glide.
	first := segs[1] // after sort: 0 -> (2's glide) -> 4's glide
	if first.EndTime.Cmp(mtxt.FromFloat(2)) > 0 {
		t.Errorf("expected truncation at or before beat 2, got end time %v", first.EndTime.AsFloat())
	}
}

func TestSampleIncludesEndpointAndDedupsFlatRuns(t *testing.T) {
	seg := transition.Segment{
		StartTime: mtxt.Zero(),
		EndTime:   mtxt.FromFloat(1),
		StartVal:  0,
		EndVal:    0, // flat segment: every sample rounds identically
		Curve:     0,
	}
	samples := transition.Sample(seg, mtxt.FromFloat(0.1))
	if len(samples) == 0 {
		t.Fatal("expected at least the endpoint sample")
	}
	if len(samples) != 1 {
		t.Errorf("flat segment gave %d samples, want 1 after dedup", len(samples))
	}
	last := samples[len(samples)-1]
	if last.Time.Cmp(seg.EndTime) != 0 {
		t.Errorf("last sample time = %v, want segment end %v", last.Time.AsFloat(), seg.EndTime.AsFloat())
	}
}

func approx(a, b float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d < 1e-9
}
