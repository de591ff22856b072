package parser

import (
	"strconv"
	"strings"

	"github.com/gomtxt/mtxt"
)

type noteKey struct {
	PC     mtxt.PitchClass
	Octave int
}

// controllerRange bounds the legal value of well-known named controllers;
// custom/numeric ("cc<N>") controllers are intentionally left unchecked,
// since their scale is caller-defined.
var controllerRange = map[string][2]float64{
	"volume":     {0, 1},
	"expression": {0, 1},
	"modulation": {0, 1},
	"sustain":    {0, 1},
	"pan":        {-1, 1},
	"pitch":      {-12, 12},
}

// finalizer carries the positional parser state of §3 across a single pass
// over a file's raw records: the active default directives, the alias
// table, and the accumulated tuning offsets.
type finalizer struct {
	diags *mtxt.Diagnostics
	store *mtxt.Store

	version mtxt.Version
	sawVer  bool

	aliases map[string]*mtxt.AliasDefinition

	tuningPC   map[mtxt.PitchClass]float64
	tuningNote map[noteKey]float64

	channel       *int
	velocity      float64
	offVelocity   float64
	duration      mtxt.BeatTime
	transCurve    float64
	transInterval float64
}

func newFinalizer() *finalizer {
	return &finalizer{
		diags:         &mtxt.Diagnostics{},
		store:         mtxt.NewStore(),
		aliases:       make(map[string]*mtxt.AliasDefinition),
		tuningPC:      make(map[mtxt.PitchClass]float64),
		tuningNote:    make(map[noteKey]float64),
		velocity:      0.8,
		offVelocity:   1.0,
		duration:      mtxt.FromFloat(1.0),
		transCurve:    0.0,
		transInterval: 10.0,
	}
}

// Finalize runs the stateful semantic pass (§4.C) over a file's raw records:
// directive-state tracking, alias expansion, tuning accumulation, range
// validation, and numeric canonicalization. It never stops at the first
// error; every record is attempted so Diagnostics collects every problem in
// one run.
func Finalize(raws []rawRecord) (mtxt.Version, *mtxt.Store, *mtxt.Diagnostics) {
	f := newFinalizer()
	for _, raw := range raws {
		f.apply(raw)
	}
	if !f.sawVer {
		f.diags.Add(&mtxt.ParseError{Line: 1, Message: "file must begin with an \"mtxt <version>\" record"})
	}
	f.store.Sort()
	return f.version, f.store, f.diags
}

func (f *finalizer) apply(raw rawRecord) {
	switch r := raw.(type) {
	case rawEmpty:
		// no-op
	case rawComment:
		f.store.Append(mtxt.NewComment(r.Line, r.Text, r.Inline))
	case rawVersion:
		f.sawVer = true
		f.version = mtxt.NewVersion(r.Line, r.Major, r.Minor)
	case rawAliasDef:
		if _, exists := f.aliases[r.Name]; exists {
			f.diags.Warn("alias \"" + r.Name + "\" redefined at line " + strconv.Itoa(r.Line))
		}
		def := &mtxt.AliasDefinition{Name: r.Name, Notes: r.Notes}
		f.aliases[r.Name] = def
		f.store.Append(mtxt.NewAliasDef(r.Line, *def))
	case rawDirective:
		f.applyDirective(r)
	case rawMeta:
		f.applyMeta(r)
	case rawNote:
		f.applyNote(r)
	case rawNoteOn:
		f.applyNoteOn(r)
	case rawNoteOff:
		f.applyNoteOff(r)
	case rawCC:
		f.applyCC(r)
	case rawVoice:
		f.applyVoice(r)
	case rawTempo:
		f.applyTempo(r)
	case rawTimeSig:
		f.store.Append(mtxt.NewTimeSig(r.Line, r.Time, r.Sig))
	case rawTuning:
		f.applyTuning(r)
	case rawReset:
		f.applyReset(r)
	case rawSysex:
		f.store.Append(mtxt.NewSysex(r.Line, &r.Time, r.Bytes))
	}
}

func (f *finalizer) applyDirective(r rawDirective) {
	switch r.Kind {
	case mtxt.DirectiveChannel:
		c := r.Channel
		f.channel = &c
	case mtxt.DirectiveVelocity:
		f.velocity = r.Num
	case mtxt.DirectiveOffVelocity:
		f.offVelocity = r.Num
	case mtxt.DirectiveDuration:
		f.duration = r.Duration
	case mtxt.DirectiveTransitionCurve:
		f.transCurve = r.Num
	case mtxt.DirectiveTransitionInterval:
		f.transInterval = r.Num
	}
	f.store.Append(mtxt.NewDefaultDirective(r.Line, r.Kind, r.Num, r.Channel, r.Duration))
}

func (f *finalizer) applyMeta(r rawMeta) {
	scope := mtxt.ScopeGlobal
	ch := 0
	if !r.Global {
		scope = mtxt.ScopeChannel
		if r.Channel != nil {
			ch = *r.Channel
		} else if f.channel != nil {
			ch = *f.channel
		} else {
			f.diags.Add(&mtxt.ReferenceError{Line: r.Line, Message: "meta record requires a channel (no default set)"})
			return
		}
	}
	f.store.Append(mtxt.NewMeta(r.Line, r.Time, scope, ch, r.Key, r.Value))
}

func (f *finalizer) resolveChannel(inline *int, lineNo int) (int, bool) {
	if inline != nil {
		return *inline, true
	}
	if f.channel != nil {
		return *f.channel, true
	}
	f.diags.Add(&mtxt.ReferenceError{Line: lineNo, Message: "channel is required (no default set by a ch= directive)"})
	return 0, false
}

// resolveNotes expands a NoteTarget into its concrete, tuned Notes: a
// literal note resolves to itself; an alias resolves to every note in its
// definition (one event is emitted per resolved note, mirroring the
// reference engine's per-note expansion). Aliases may only reference
// literal notes by construction (the grammar parses alias bodies as bare
// note tokens), so no cycle is possible and no cycle detection is needed.
func (f *finalizer) resolveNotes(target mtxt.NoteTarget, lineNo int) ([]mtxt.Note, bool) {
	if target.Note != nil {
		n := *target.Note
		n.Cents = f.tunedCents(n)
		return []mtxt.Note{n}, true
	}
	def, ok := f.aliases[target.AliasName]
	if !ok {
		f.diags.Add(&mtxt.ReferenceError{Line: lineNo, Message: "unknown alias \"" + target.AliasName + "\""})
		return nil, false
	}
	notes := make([]mtxt.Note, len(def.Notes))
	for i, n := range def.Notes {
		n.Cents = f.tunedCents(n)
		notes[i] = n
	}
	return notes, true
}

func (f *finalizer) tunedCents(n mtxt.Note) float64 {
	key := noteKey{PC: n.PitchClass, Octave: n.Octave}
	if c, ok := f.tuningNote[key]; ok {
		return n.Cents + c
	}
	if c, ok := f.tuningPC[n.PitchClass]; ok {
		return n.Cents + c
	}
	return n.Cents
}

func (f *finalizer) applyNote(r rawNote) {
	ch, ok := f.resolveChannel(r.Channel, r.Line)
	if !ok {
		return
	}
	notes, ok := f.resolveNotes(r.Target, r.Line)
	if !ok {
		return
	}
	dur := f.duration
	if r.Duration != nil {
		dur = *r.Duration
	}
	vel := f.velocity
	if r.Velocity != nil {
		vel = *r.Velocity
	}
	offvel := f.offVelocity
	if r.OffVel != nil {
		offvel = *r.OffVel
	}
	for i := range notes {
		n := notes[i]
		f.store.Append(mtxt.NewNoteEvent(r.Line, r.Time, mtxt.NoteTarget{Note: &n}, dur, vel, offvel, ch))
	}
}

func (f *finalizer) applyNoteOn(r rawNoteOn) {
	ch, ok := f.resolveChannel(r.Channel, r.Line)
	if !ok {
		return
	}
	notes, ok := f.resolveNotes(r.Target, r.Line)
	if !ok {
		return
	}
	vel := f.velocity
	if r.Velocity != nil {
		vel = *r.Velocity
	}
	for _, n := range notes {
		f.store.Append(mtxt.NewNoteOn(r.Line, r.Time, n, vel, ch))
	}
}

func (f *finalizer) applyNoteOff(r rawNoteOff) {
	ch, ok := f.resolveChannel(r.Channel, r.Line)
	if !ok {
		return
	}
	notes, ok := f.resolveNotes(r.Target, r.Line)
	if !ok {
		return
	}
	offvel := f.offVelocity
	if r.OffVel != nil {
		offvel = *r.OffVel
	}
	for _, n := range notes {
		f.store.Append(mtxt.NewNoteOff(r.Line, r.Time, n, offvel, ch))
	}
}

func (f *finalizer) applyCC(r rawCC) {
	ch, ok := f.resolveChannel(r.Channel, r.Line)
	if !ok {
		return
	}
	if rng, known := controllerRange[r.Controller]; known {
		if r.Value < rng[0] || r.Value > rng[1] {
			f.diags.Add(&mtxt.RangeError{Line: r.Line, Field: r.Controller, Value: r.Value,
				Message: "must be within [" + strconv.FormatFloat(rng[0], 'f', -1, 64) + "," + strconv.FormatFloat(rng[1], 'f', -1, 64) + "]"})
			return
		}
	}

	trans := f.resolveTransition(r.TransCurve, r.TransTime, r.TransInterval)

	if r.Note == nil {
		f.store.Append(mtxt.NewCC(r.Line, r.Time, r.Controller, r.Value, ch, nil, trans))
		return
	}
	notes, ok := f.resolveNotes(*r.Note, r.Line)
	if !ok {
		return
	}
	for i := range notes {
		n := notes[i]
		f.store.Append(mtxt.NewCC(r.Line, r.Time, r.Controller, r.Value, ch, &n, trans))
	}
}

func (f *finalizer) resolveTransition(curve *float64, transTime *mtxt.BeatTime, interval *float64) *mtxt.Transition {
	if curve == nil && transTime == nil && interval == nil {
		return nil
	}
	c := f.transCurve
	if curve != nil {
		c = *curve
	}
	tt := mtxt.Zero()
	if transTime != nil {
		tt = *transTime
	}
	iv := f.transInterval
	if interval != nil {
		iv = *interval
	}
	return &mtxt.Transition{Curve: c, Time: tt, IntervalMs: iv}
}

func (f *finalizer) applyVoice(r rawVoice) {
	ch, ok := f.resolveChannel(r.Channel, r.Line)
	if !ok {
		return
	}
	f.store.Append(mtxt.NewVoice(r.Line, r.Time, ch, r.Voices))
}

func (f *finalizer) applyTempo(r rawTempo) {
	if r.BPM <= 0 {
		f.diags.Add(&mtxt.RangeError{Line: r.Line, Field: "tempo", Value: r.BPM, Message: "must be > 0"})
		return
	}
	trans := f.resolveTransition(r.TransCurve, r.TransTime, r.TransInterval)
	f.store.Append(mtxt.NewTempo(r.Line, r.Time, r.BPM, trans))
}

func (f *finalizer) applyTuning(r rawTuning) {
	if note, err := mtxt.ParseNote(r.Target); err == nil {
		f.tuningNote[noteKey{PC: note.PitchClass, Octave: note.Octave}] = r.Cents
		f.store.Append(mtxt.NewTuning(r.Line, r.Time, nil, &note, r.Cents))
		return
	}
	pc, err := mtxt.ParsePitchClass(r.Target)
	if err != nil {
		f.diags.Add(&mtxt.ReferenceError{Line: r.Line, Message: "invalid tuning target \"" + r.Target + "\""})
		return
	}
	f.tuningPC[pc] = r.Cents
	f.store.Append(mtxt.NewTuning(r.Line, r.Time, &pc, nil, r.Cents))
}

func (f *finalizer) applyReset(r rawReset) {
	target := strings.TrimSpace(r.Target)
	switch {
	case target == "all":
		f.channel = nil
		f.velocity, f.offVelocity = 0.8, 1.0
		f.duration = mtxt.FromFloat(1.0)
		f.transCurve, f.transInterval = 0.0, 10.0
		f.tuningPC = make(map[mtxt.PitchClass]float64)
		f.tuningNote = make(map[noteKey]float64)
		f.store.Append(mtxt.NewReset(r.Line, r.Time, mtxt.ResetAll, 0))
	case target == "tuning":
		f.tuningPC = make(map[mtxt.PitchClass]float64)
		f.tuningNote = make(map[noteKey]float64)
		f.store.Append(mtxt.NewReset(r.Line, r.Time, mtxt.ResetTuning, 0))
	default:
		chStr := target
		if strings.HasPrefix(target, "ch=") {
			chStr = target[len("ch="):]
		}
		ch, err := strconv.Atoi(chStr)
		if err != nil {
			f.diags.Add(&mtxt.ParseError{Line: r.Line, Message: "invalid reset target \"" + r.Target + "\""})
			return
		}
		f.store.Append(mtxt.NewReset(r.Line, r.Time, mtxt.ResetChannel, ch))
	}
}
