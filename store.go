package mtxt

import "sort"

// Store is the Event Store of component D: an ordered collection of
// finalized Records supporting append, stable composite sort, range
// iteration, and start-value lookup for transition resolution. A Store has
// a single owner; Transforms consume a Store and return a new one rather
// than mutating in place (§5).
type Store struct {
	entries []storeEntry
}

type storeEntry struct {
	rec Record
	seq int
}

// NewStore returns an empty Event Store.
func NewStore() *Store {
	return &Store{}
}

// Append adds a record in file-insertion order. The Store is not sorted
// until Sort is called; most consumers should call Sort once after the
// finalize pass completes.
func (s *Store) Append(r Record) {
	s.entries = append(s.entries, storeEntry{rec: r, seq: len(s.entries)})
}

// Len returns the number of records in the store.
func (s *Store) Len() int { return len(s.entries) }

// Records returns the records in their current (possibly unsorted) order.
func (s *Store) Records() []Record {
	out := make([]Record, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.rec
	}
	return out
}

// Sort stably orders the store by the composite key from §4.C: time
// ascending, then type rank, then original file-insertion order. Calling
// Sort is idempotent.
func (s *Store) Sort() {
	sort.SliceStable(s.entries, func(i, j int) bool {
		a, b := s.entries[i], s.entries[j]
		at, bt := recordTime(a.rec), recordTime(b.rec)
		if c := at.Cmp(bt); c != 0 {
			return c < 0
		}
		if a.rec.Rank() != b.rec.Rank() {
			return a.rec.Rank() < b.rec.Rank()
		}
		return a.seq < b.seq
	})
}

func recordTime(r Record) BeatTime {
	if r.HasTime() {
		return r.Time()
	}
	return Zero()
}

// Clone returns a new Store with the same records in the same order —
// transforms start from a clone so they never alias their input's backing
// array.
func (s *Store) Clone() *Store {
	out := &Store{entries: make([]storeEntry, len(s.entries))}
	copy(out.entries, s.entries)
	return out
}

// Range returns, in current store order, every record with time in [t0, t1).
func (s *Store) Range(t0, t1 BeatTime) []Record {
	var out []Record
	for _, e := range s.entries {
		if !e.rec.HasTime() {
			continue
		}
		t := e.rec.Time()
		if t.Cmp(t0) >= 0 && t.Cmp(t1) < 0 {
			out = append(out, e.rec)
		}
	}
	return out
}

// TransitionKey identifies the (channel, controller[, note]) axis that a cc
// or tempo transition resolves its start value against.
type TransitionKey struct {
	Channel    int
	Controller string // empty string means "tempo", the only channel-less key
	HasNote    bool
	Note       Note
}

// LastValueAtOrBefore scans the store (assumed sorted by Sort) for the most
// recent value of the given key at or before t, returning the concrete
// value and true, or false if no such record exists. Used by the Transition
// Evaluator's start-value resolution (§4.F).
func (s *Store) LastValueAtOrBefore(key TransitionKey, t BeatTime) (float64, bool) {
	found := false
	var best BeatTime
	var val float64
	for _, e := range s.entries {
		if !e.rec.HasTime() || e.rec.Time().Cmp(t) > 0 {
			continue
		}
		v, ok := matchTransitionKey(e.rec, key)
		if !ok {
			continue
		}
		if !found || e.rec.Time().Cmp(best) >= 0 {
			found = true
			best = e.rec.Time()
			val = v
		}
	}
	return val, found
}

func matchTransitionKey(r Record, key TransitionKey) (float64, bool) {
	switch rec := r.(type) {
	case CC:
		if rec.Channel != key.Channel || rec.Controller != key.Controller {
			return 0, false
		}
		if key.HasNote != (rec.Note != nil) {
			return 0, false
		}
		if key.HasNote && (rec.Note.PitchClass != key.Note.PitchClass || rec.Note.Octave != key.Note.Octave) {
			return 0, false
		}
		return rec.Value, true
	case Tempo:
		if key.Controller != "" {
			return 0, false
		}
		return rec.BPM, true
	default:
		return 0, false
	}
}
