// Package transition implements the Transition Evaluator (§4.F): the
// piecewise glide curve used by cc and tempo records that carry a
// transition envelope, plus the preemption rule for overlapping glides and
// the sampling used to flatten a glide into discrete events for MIDI
// export.
package transition

import (
	"sort"

	"github.com/gomtxt/mtxt"
)

// Curve evaluates the normalized glide shape f(s) for s in [0,1] and curve
// parameter alpha, per §4.F:
//
//	f(s) = s + max(alpha,0)*(s^4-s) + max(-alpha,0)*((1-(1-s)^4)-s)
//
// alpha > 0 bows the curve late (ease-in), alpha < 0 bows it early
// (ease-out), alpha == 0 is linear. f(0) == 0 and f(1) == 1 exactly for any
// alpha, by construction.
func Curve(s, alpha float64) float64 {
	if s <= 0 {
		return 0
	}
	if s >= 1 {
		return 1
	}
	v := s
	if alpha > 0 {
		v += alpha * (s*s*s*s - s)
	} else if alpha < 0 {
		inv := 1 - s
		v += (-alpha) * ((1 - inv*inv*inv*inv) - s)
	}
	return v
}

// Segment is one resolved glide: a value ramps from startVal at startTime
// to endVal at endTime using the given curve shape. A zero-duration
// Segment (startTime == endTime) represents an instantaneous set.
type Segment struct {
	StartTime mtxt.BeatTime
	EndTime   mtxt.BeatTime
	StartVal  float64
	EndVal    float64
	Curve     float64
}

// ValueAt evaluates the segment's value at time t. t before StartTime
// yields StartVal; t at or after EndTime yields EndVal.
func (seg Segment) ValueAt(t mtxt.BeatTime) float64 {
	span := seg.EndTime.Sub(seg.StartTime).AsFloat()
	if span <= 0 {
		return seg.EndVal
	}
	elapsed := t.Sub(seg.StartTime).AsFloat()
	if elapsed <= 0 {
		return seg.StartVal
	}
	if elapsed >= span {
		return seg.EndVal
	}
	s := elapsed / span
	return seg.StartVal + Curve(s, seg.Curve)*(seg.EndVal-seg.StartVal)
}

// BuildSegments resolves a chronologically-ordered series of (time, value,
// transition) records that all share one TransitionKey into a series of
// non-overlapping Segments, applying the §4.F preemption rule: a later
// transition that begins before an earlier one finishes truncates the
// earlier one at the later transition's start value (computed from the
// earlier segment, not the earlier record's nominal end value).
//
// records must already be sorted by time (the Event Store's invariant).
func BuildSegments(records []ResolvedPoint) []Segment {
	if len(records) == 0 {
		return nil
	}
	out := make([]Segment, 0, len(records))
	prevVal := records[0].Value
	prevEnd := records[0].Time
	first := true
	for _, rp := range records {
		startTime := rp.Time
		if !rp.Transition.IsZero() {
			startTime = subClamped(rp.Time, rp.Transition.Time)
		}
		startVal := prevVal
		if !first && startTime.Less(prevEnd) {
			// preemption: this transition starts before the previous one's
			// glide finished; its actual start value is the previous
			// segment sampled at this transition's start time, and the
			// previous segment is truncated there.
			if len(out) > 0 {
				startVal = out[len(out)-1].ValueAt(startTime)
				out[len(out)-1].EndTime = startTime
				out[len(out)-1].EndVal = startVal
			}
		}
		curve := 0.0
		if !rp.Transition.IsZero() {
			curve = rp.Transition.Curve
		}
		seg := Segment{StartTime: startTime, EndTime: rp.Time, StartVal: startVal, EndVal: rp.Value, Curve: curve}
		if seg.EndTime.Less(seg.StartTime) {
			seg.EndTime = seg.StartTime
		}
		out = append(out, seg)
		prevVal = rp.Value
		prevEnd = rp.Time
		first = false
	}
	return out
}

func subClamped(t, d mtxt.BeatTime) mtxt.BeatTime {
	return t.Sub(d)
}

// ResolvedPoint is one chronologically-placed value change feeding
// BuildSegments: the record's own time, its target value, and its
// transition envelope (zero-valued Transition for an instantaneous set).
type ResolvedPoint struct {
	Time       mtxt.BeatTime
	Value      float64
	Transition mtxt.Transition
}

// Sample flattens a Segment into discrete (time, value) pairs at the given
// cadence (in beats), always including the segment's own end point and
// never emitting two consecutive samples whose value rounds identically at
// 5 decimal places (§4.F/§4.G dedup rule, avoiding redundant MIDI events).
func Sample(seg Segment, cadence mtxt.BeatTime) []TimedValue {
	if seg.EndTime.Cmp(seg.StartTime) <= 0 || cadence.Units() == 0 {
		return []TimedValue{{Time: seg.EndTime, Value: seg.EndVal}}
	}
	var out []TimedValue
	var lastRounded float64
	haveLast := false
	t := seg.StartTime
	for t.Less(seg.EndTime) {
		v := seg.ValueAt(t)
		rv := round5(v)
		if !haveLast || rv != lastRounded {
			out = append(out, TimedValue{Time: t, Value: v})
			lastRounded = rv
			haveLast = true
		}
		t = t.Add(cadence)
	}
	finalRv := round5(seg.EndVal)
	if !haveLast || finalRv != lastRounded {
		out = append(out, TimedValue{Time: seg.EndTime, Value: seg.EndVal})
	} else if len(out) > 0 {
		out[len(out)-1] = TimedValue{Time: seg.EndTime, Value: seg.EndVal}
	}
	return out
}

func round5(v float64) float64 {
	const scale = 100000.0
	if v >= 0 {
		return float64(int64(v*scale+0.5)) / scale
	}
	return float64(int64(v*scale-0.5)) / scale
}

// TimedValue is one flattened sample of a Segment.
type TimedValue struct {
	Time  mtxt.BeatTime
	Value float64
}

// CadenceFor converts a Transition's IntervalMs sampling cadence into beats
// at the given tempo, with a floor of one millibeat to guard against a
// pathological zero-or-near-zero interval producing an unbounded sample
// count.
func CadenceFor(t mtxt.Transition, bpm float64) mtxt.BeatTime {
	ms := t.IntervalMs
	if ms <= 0 {
		ms = 10.0
	}
	beatsPerMs := bpm / 60000.0
	beats := ms * beatsPerMs
	if beats < 0.001 {
		beats = 0.001
	}
	return mtxt.FromFloat(beats)
}

// SortByTime stably sorts points in place by time, the precondition
// BuildSegments requires.
func SortByTime(points []ResolvedPoint) {
	sort.SliceStable(points, func(i, j int) bool { return points[i].Time.Less(points[j].Time) })
}
