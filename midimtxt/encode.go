package midimtxt

import (
	"fmt"
	"sort"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/gomtxt/mtxt"
	"github.com/gomtxt/mtxt/transition"
)

// EncodeOptions controls the export from mtxt to SMF.
type EncodeOptions struct {
	// TicksPerQuarter is the file's metric resolution; 0 defaults to 480,
	// matching the reference engine's default PPQ.
	TicksPerQuarter uint16
	// PitchBendRangeSemitones is the RPN pitch-bend range assumed when
	// converting a note's cents, or an explicit "pitch" CC, into a
	// pitch-wheel event; defaults to 2 semitones (the GM default) if zero.
	PitchBendRangeSemitones float64
}

// Encode renders a Store to a Standard MIDI File (format 1: one tempo/meta
// track plus one track per channel actually used). Channels 16 and above
// (MTXT's channel space is unbounded, unlike MIDI's 0-15) are placed on
// additional tracks with a "channelmap" global meta entry recording the
// shadow assignment, per §4.H.
//
// Microtonal notes (cents != 0) drive a pitch-wheel event on their
// channel, preceding the NoteOn and restored to center once nothing on
// that channel still needs the bend; simultaneous notes on one logical
// channel that need distinct cents are routed onto borrowed
// shadow MIDI channels (§4.A, §4.H). CC and Tempo transitions are resolved
// once per TransitionKey across the whole store so overlapping glides on
// the same key preempt each other correctly (§4.F); a transition with no
// resolvable prior value is reported as a ConversionError rather than
// silently rendered from zero (Invariant 4, §7).
func Encode(version mtxt.Version, store *mtxt.Store, opts EncodeOptions) (*smf.SMF, error) {
	if opts.TicksPerQuarter == 0 {
		opts.TicksPerQuarter = 480
	}
	if opts.PitchBendRangeSemitones == 0 {
		opts.PitchBendRangeSemitones = 2.0
	}
	records := store.Records()
	for _, r := range records {
		var n mtxt.Note
		switch rec := r.(type) {
		case mtxt.NoteEvent:
			n = noteFromTarget(rec.Note)
		case mtxt.NoteOn:
			n = rec.Note
		case mtxt.NoteOff:
			n = rec.Note
		default:
			continue
		}
		if k := n.MIDINumber(); k < 0 || k > 127 {
			return nil, &mtxt.ConversionError{Message: fmt.Sprintf("line %d: note %s is outside the MIDI range 0-127", r.Line(), n)}
		}
	}

	enc := &encoder{
		ppq:       opts.TicksPerQuarter,
		store:     store,
		channels:  map[int]int{},
		logicalOf: map[int]int{},
		primary:   map[int]uint8{},
		nextTrack: 1,
		bendRange: opts.PitchBendRangeSemitones,
	}
	enc.assignTracks(records)
	enc.reserved = enc.reservedChannels()

	transitions, err := enc.resolveTransitions(records)
	if err != nil {
		return nil, err
	}

	s := smf.NewSMF1()
	s.TimeFormat = smf.MetricTicks(opts.TicksPerQuarter)

	meta := make(smf.Track, 0, 16)
	meta = enc.emitSorted(meta, enc.buildMetaEvents(records, transitions))
	meta.Close(0)
	s.Add(meta)

	for trackIdx := 1; trackIdx < enc.nextTrack; trackIdx++ {
		tr := make(smf.Track, 0, 64)
		tr = enc.emitSorted(tr, enc.buildChannelEvents(trackIdx, records, transitions))
		tr.Close(0)
		s.Add(tr)
	}

	return s, nil
}

type encoder struct {
	ppq       uint16
	store     *mtxt.Store
	channels  map[int]int    // mtxt channel -> track index
	logicalOf map[int]int    // track index -> mtxt channel
	primary   map[int]uint8  // track index -> assigned MIDI channel
	reserved  map[uint8]bool // MIDI channels already claimed as some track's primary
	nextTrack int
	bendRange float64
}

// assignTracks gives each distinct mtxt channel, in first-seen order, its
// own SMF track and a MIDI channel number: its own number modulo 16 when
// that slot is still free, or the lowest free slot otherwise. A channel
// numbered 16 or above, or one that had to be remapped to a different
// slot, gets a "channelmap" meta entry so decode can recover it (§4.H).
func (e *encoder) assignTracks(records []mtxt.Record) {
	seen := map[int]bool{}
	used := map[uint8]bool{}
	for _, r := range records {
		ch, ok := channelOf(r)
		if !ok || seen[ch] {
			continue
		}
		seen[ch] = true
		e.channels[ch] = e.nextTrack
		e.logicalOf[e.nextTrack] = ch
		mc := e.pickMIDIChannel(ch, used)
		e.primary[e.nextTrack] = mc
		used[mc] = true
		e.nextTrack++
	}
}

func (e *encoder) pickMIDIChannel(ch int, used map[uint8]bool) uint8 {
	want := uint8(ch % 16)
	if !used[want] {
		return want
	}
	for c := 0; c < 16; c++ {
		if !used[uint8(c)] {
			return uint8(c)
		}
	}
	return want // all 16 slots taken; reuse the preferred one as a last resort
}

func channelOf(r mtxt.Record) (int, bool) {
	switch rec := r.(type) {
	case mtxt.NoteEvent:
		return rec.Channel, true
	case mtxt.NoteOn:
		return rec.Channel, true
	case mtxt.NoteOff:
		return rec.Channel, true
	case mtxt.CC:
		return rec.Channel, true
	case mtxt.Voice:
		return rec.Channel, true
	default:
		return 0, false
	}
}

func (e *encoder) reservedChannels() map[uint8]bool {
	reserved := map[uint8]bool{}
	for _, mc := range e.primary {
		reserved[mc] = true
	}
	return reserved
}

func (e *encoder) beatToTick(t mtxt.BeatTime) int64 {
	return int64(t.AsFloat()*float64(e.ppq) + 0.5)
}

// trackEvent is one pending SMF event awaiting delta-time assignment once
// every event destined for a track — ordinary per-record events and
// transition-sampled events alike — has been collected and sorted into
// absolute tick order.
type trackEvent struct {
	tick int64
	seq  int
	msg  smf.Message
}

func (e *encoder) emitSorted(tr smf.Track, events []trackEvent) smf.Track {
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].tick != events[j].tick {
			return events[i].tick < events[j].tick
		}
		return events[i].seq < events[j].seq
	})
	var lastTick int64
	for _, ev := range events {
		delta := ev.tick - lastTick
		if delta < 0 {
			delta = 0
		}
		tr.Add(uint32(delta), ev.msg)
		lastTick = ev.tick
	}
	return tr
}

// transitionSource is one chronologically-placed CC/Tempo record carrying
// an active (non-instantaneous) transition.
type transitionSource struct {
	point mtxt.BeatTime
	rp    transition.ResolvedPoint
	line  int
}

// resolveTransitions gathers every transitioned CC/Tempo record by its
// TransitionKey across the whole store — not one record at a time — so
// BuildSegments sees the complete, chronologically-ordered series it needs
// to apply the §4.F preemption rule, then flattens each key's segments
// into discrete samples. A key whose first transition has no resolvable
// prior value (Invariant 4) fails the whole encode with a ConversionError
// naming the offending line, rather than silently starting from zero.
func (e *encoder) resolveTransitions(records []mtxt.Record) (map[mtxt.TransitionKey][]transition.TimedValue, error) {
	groups := map[mtxt.TransitionKey][]transitionSource{}
	for _, r := range records {
		switch rec := r.(type) {
		case mtxt.CC:
			if rec.Transition == nil || rec.Transition.IsZero() {
				continue
			}
			key := mtxt.TransitionKey{Channel: rec.Channel, Controller: rec.Controller}
			if rec.Note != nil {
				key.HasNote = true
				key.Note = *rec.Note
			}
			groups[key] = append(groups[key], transitionSource{
				point: rec.Time(),
				rp:    transition.ResolvedPoint{Time: rec.Time(), Value: rec.Value, Transition: *rec.Transition},
				line:  rec.Line(),
			})
		case mtxt.Tempo:
			if rec.Transition == nil || rec.Transition.IsZero() {
				continue
			}
			groups[mtxt.TransitionKey{}] = append(groups[mtxt.TransitionKey{}], transitionSource{
				point: rec.Time(),
				rp:    transition.ResolvedPoint{Time: rec.Time(), Value: rec.BPM, Transition: *rec.Transition},
				line:  rec.Line(),
			})
		}
	}

	out := map[mtxt.TransitionKey][]transition.TimedValue{}
	for key, sources := range groups {
		first := sources[0]
		startAt := first.point.Sub(first.rp.Transition.Time)
		startVal, ok := e.store.LastValueAtOrBefore(key, startAt)
		if !ok {
			return nil, &mtxt.ConversionError{
				Message: fmt.Sprintf("line %d: transition has no defined value to start from", first.line),
			}
		}

		// A leading instantaneous point carries the start value, so every
		// glide (and any preemption value sampled from it) starts from it.
		resolved := make([]transition.ResolvedPoint, 0, len(sources)+1)
		resolved = append(resolved, transition.ResolvedPoint{Time: startAt, Value: startVal})
		for _, src := range sources {
			resolved = append(resolved, src.rp)
		}
		segs := transition.BuildSegments(resolved)[1:]

		var samples []transition.TimedValue
		for i, seg := range segs {
			bpm := 120.0
			if key.Controller == "" {
				bpm = sources[i].rp.Value
			}
			cadence := transition.CadenceFor(sources[i].rp.Transition, bpm)
			samples = append(samples, transition.Sample(seg, cadence)...)
		}
		out[key] = samples
	}
	return out, nil
}

func (e *encoder) buildMetaEvents(records []mtxt.Record, transitions map[mtxt.TransitionKey][]transition.TimedValue) []trackEvent {
	var events []trackEvent
	seq := 0
	add := func(t mtxt.BeatTime, msg smf.Message) {
		events = append(events, trackEvent{tick: e.beatToTick(t), seq: seq, msg: msg})
		seq++
	}

	add(mtxt.Zero(), smf.MetaTempo(120.0))

	for _, r := range records {
		switch rec := r.(type) {
		case mtxt.Tempo:
			if rec.Transition == nil || rec.Transition.IsZero() {
				add(rec.Time(), smf.MetaTempo(rec.BPM))
			}
		case mtxt.TimeSig:
			add(rec.Time(), smf.MetaMeter(uint8(rec.Signature.Num), uint8(rec.Signature.Den)))
		case mtxt.Meta:
			if rec.Scope == mtxt.ScopeGlobal {
				add(rec.Time(), smf.MetaText(rec.Key+": "+rec.Value))
			}
		}
	}

	for _, sample := range transitions[mtxt.TransitionKey{}] {
		add(sample.Time, smf.MetaTempo(sample.Value))
	}

	for ch, track := range e.channels {
		if ch >= 16 || e.primary[track] != uint8(ch%16) {
			add(mtxt.Zero(), smf.MetaText("channelmap "+itoaPair(ch, track)))
		}
	}
	return events
}

func itoaPair(ch, track int) string {
	return formatInt(ch) + "=" + formatInt(track)
}

func formatInt(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

func (e *encoder) buildChannelEvents(trackIdx int, records []mtxt.Record, transitions map[mtxt.TransitionKey][]transition.TimedValue) []trackEvent {
	var events []trackEvent
	seq := 0
	add := func(t mtxt.BeatTime, msg midi.Message) {
		events = append(events, trackEvent{tick: e.beatToTick(t), seq: seq, msg: smf.Message(msg)})
		seq++
	}

	logicalCh := e.logicalOf[trackIdx]
	primary := e.primary[trackIdx]
	router := newPitchRouter(primary, e.reserved)

	for _, r := range records {
		if reset, ok := r.(mtxt.Reset); ok {
			e.emitReset(add, primary, logicalCh, reset)
			continue
		}
		ch, ok := channelOf(r)
		if !ok || e.channels[ch] != trackIdx {
			continue
		}
		switch rec := r.(type) {
		case mtxt.Voice:
			add(rec.Time(), midi.ProgramChange(primary, VoiceToProgram(rec.Voices)))
		case mtxt.NoteEvent:
			n := noteFromTarget(rec.Note)
			noteCh := router.acquire(add, rec.Time(), n, e.bendRange)
			add(rec.Time(), midi.NoteOn(noteCh, noteMIDIKey(n), velocityByte(rec.Velocity)))
			offTime := rec.Time().Add(rec.Duration)
			add(offTime, midi.NoteOffVelocity(noteCh, noteMIDIKey(n), velocityByte(rec.OffVel)))
			router.release(add, offTime, n)
		case mtxt.NoteOn:
			noteCh := router.acquire(add, rec.Time(), rec.Note, e.bendRange)
			add(rec.Time(), midi.NoteOn(noteCh, noteMIDIKey(rec.Note), velocityByte(rec.Velocity)))
		case mtxt.NoteOff:
			noteCh := router.channelFor(rec.Note)
			add(rec.Time(), midi.NoteOffVelocity(noteCh, noteMIDIKey(rec.Note), velocityByte(rec.OffVel)))
			router.release(add, rec.Time(), rec.Note)
		case mtxt.CC:
			e.emitCC(add, primary, rec)
		}
	}

	for key, samples := range transitions {
		if key.Controller == "" || key.Channel != logicalCh {
			continue
		}
		if key.Controller == "pitch" {
			for _, sample := range samples {
				add(sample.Time, pitchBendMessage(primary, sample.Value*100.0, e.bendRange))
			}
			continue
		}
		num, ok := ControllerFromName(key.Controller)
		if !ok {
			continue
		}
		for _, sample := range samples {
			add(sample.Time, midi.ControlChange(primary, num, valueByte(sample.Value)))
		}
	}

	return events
}

// emitReset turns a `reset` record into All-Notes-Off (CC 123) and
// Reset-All-Controllers (CC 121) on the channels it targets (§4.H):
// every active channel for "reset all", only the matching one for a
// channel-scoped reset, and nothing at all for a tuning-only reset.
func (e *encoder) emitReset(add func(mtxt.BeatTime, midi.Message), primary uint8, logicalCh int, rec mtxt.Reset) {
	switch rec.Target {
	case mtxt.ResetTuning:
		return
	case mtxt.ResetChannel:
		if rec.Channel != logicalCh {
			return
		}
	case mtxt.ResetAll:
		// applies to every channel track; fall through to emit below.
	}
	add(rec.Time(), midi.ControlChange(primary, 123, 0))
	add(rec.Time(), midi.ControlChange(primary, 121, 0))
}

func noteFromTarget(t mtxt.NoteTarget) mtxt.Note {
	if t.Note != nil {
		return *t.Note
	}
	return mtxt.Note{}
}

func noteMIDIKey(n mtxt.Note) uint8 {
	v := n.MIDINumber()
	if v < 0 {
		v = 0
	}
	if v > 127 {
		v = 127
	}
	return uint8(v)
}

func velocityByte(v float64) uint8 {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	b := uint8(v*127.0 + 0.5)
	return b
}

func (e *encoder) emitCC(add func(mtxt.BeatTime, midi.Message), midiCh uint8, rec mtxt.CC) {
	if rec.Transition != nil && !rec.Transition.IsZero() {
		return // emitted once, in aggregate, from the resolved transitions map
	}
	if rec.Controller == "pitch" {
		add(rec.Time(), pitchBendMessage(midiCh, rec.Value*100.0, e.bendRange))
		return
	}
	num, ok := ControllerFromName(rec.Controller)
	if !ok {
		return
	}
	add(rec.Time(), midi.ControlChange(midiCh, num, valueByte(rec.Value)))
}

func pitchBendMessage(ch uint8, cents, bendRangeSemitones float64) midi.Message {
	semitones := cents / 100.0
	bend := int16((semitones / bendRangeSemitones) * 8192.0)
	return midi.Pitchbend(ch, bend)
}

func valueByte(v float64) uint8 {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	return uint8(v*127.0 + 0.5)
}

// noteSlotKey identifies a currently-sounding note for pitch-routing
// purposes: MIDI has no way to distinguish two simultaneous notes at the
// same key number, so neither do we.
type noteSlotKey struct {
	pc     mtxt.PitchClass
	octave int
}

func noteSlot(n mtxt.Note) noteSlotKey {
	return noteSlotKey{pc: n.PitchClass, octave: n.Octave}
}

// pitchRouter assigns each NoteOn on one logical channel to a MIDI channel
// carrying the right pitch-bend state: the track's own primary channel
// when possible, falling back to a borrowed shadow channel only when a
// simultaneous note on the primary already needs a different cents value
// (§4.A, §4.H scenario S2).
type pitchRouter struct {
	primary  uint8
	reserved map[uint8]bool
	bend     map[uint8]float64 // last cents value actually sent per channel
	count    map[uint8]int     // currently-sounding notes per channel
	claimed  []uint8           // shadow channels borrowed so far, in acquisition order
	noteChan map[noteSlotKey]uint8
}

func newPitchRouter(primary uint8, reserved map[uint8]bool) *pitchRouter {
	return &pitchRouter{
		primary:  primary,
		reserved: reserved,
		bend:     map[uint8]float64{},
		count:    map[uint8]int{},
		noteChan: map[noteSlotKey]uint8{},
	}
}

// acquire picks the MIDI channel for a NoteOn carrying n's cents, emitting
// a pitch-wheel event first if that channel's bend state must change, and
// remembers the assignment so the matching NoteOff lands on the same
// channel.
func (r *pitchRouter) acquire(add func(mtxt.BeatTime, midi.Message), t mtxt.BeatTime, n mtxt.Note, bendRange float64) uint8 {
	ch := r.primary
	found := false
	for _, c := range append([]uint8{r.primary}, r.claimed...) {
		if r.count[c] == 0 || r.bend[c] == n.Cents {
			ch = c
			found = true
			break
		}
	}
	if !found {
		if shadow, ok := r.nextFreeShadow(); ok {
			r.claimed = append(r.claimed, shadow)
			ch = shadow
		}
		// shadow pool exhausted: share the primary channel as a last resort,
		// accepting an incorrect bend for this note rather than dropping it.
	}
	r.setBend(add, t, ch, n.Cents, bendRange)
	r.count[ch]++
	r.noteChan[noteSlot(n)] = ch
	return ch
}

// channelFor returns the MIDI channel an already-acquired note is sounding
// on, for a NoteOff record that did not come through acquire itself.
func (r *pitchRouter) channelFor(n mtxt.Note) uint8 {
	if ch, ok := r.noteChan[noteSlot(n)]; ok {
		return ch
	}
	return r.primary
}

// release drops the note's claim on its channel and restores the pitch
// wheel to center once nothing else on that channel still needs the bend.
func (r *pitchRouter) release(add func(mtxt.BeatTime, midi.Message), t mtxt.BeatTime, n mtxt.Note) {
	ch := r.channelFor(n)
	delete(r.noteChan, noteSlot(n))
	if r.count[ch] > 0 {
		r.count[ch]--
	}
	if r.count[ch] == 0 && r.bend[ch] != 0 {
		r.setBend(add, t, ch, 0, 1)
	}
}

func (r *pitchRouter) nextFreeShadow() (uint8, bool) {
	claimed := map[uint8]bool{}
	for _, c := range r.claimed {
		claimed[c] = true
	}
	for c := 0; c < 16; c++ {
		ch := uint8(c)
		if ch == r.primary || r.reserved[ch] || claimed[ch] {
			continue
		}
		return ch, true
	}
	return 0, false
}

func (r *pitchRouter) setBend(add func(mtxt.BeatTime, midi.Message), t mtxt.BeatTime, ch uint8, cents, bendRange float64) {
	if r.bend[ch] == cents {
		return
	}
	r.bend[ch] = cents
	add(t, pitchBendMessage(ch, cents, bendRange))
}
