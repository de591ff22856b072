package parser

import "github.com/gomtxt/mtxt"

// rawRecord is the pass-1 (lexical/grammatical) representation of a single
// MTXT line: every field that may be supplied inline is captured as given,
// with positional-default resolution deferred to Finalize. This mirrors the
// reference engine's MtxtRecord enum, which also keeps these fields as
// Option<T> until its process.rs semantic pass.
type rawRecord interface {
	line() int
}

type rawBase struct{ Line int }

func (r rawBase) line() int { return r.Line }

type rawEmpty struct{ rawBase }

type rawComment struct {
	rawBase
	Text   string
	Inline bool
}

type rawVersion struct {
	rawBase
	Major, Minor int
}

type rawAliasDef struct {
	rawBase
	Name  string
	Notes []mtxt.Note
}

type rawDirective struct {
	rawBase
	Kind     mtxt.DirectiveKind
	Num      float64
	Channel  int
	Duration mtxt.BeatTime
}

type rawMeta struct {
	rawBase
	Time    *mtxt.BeatTime
	Global  bool
	Channel *int
	Key     string
	Value   string
}

type rawNote struct {
	rawBase
	Time     mtxt.BeatTime
	Target   mtxt.NoteTarget
	Duration *mtxt.BeatTime
	Velocity *float64
	OffVel   *float64
	Channel  *int
}

type rawNoteOn struct {
	rawBase
	Time     mtxt.BeatTime
	Target   mtxt.NoteTarget
	Velocity *float64
	Channel  *int
}

type rawNoteOff struct {
	rawBase
	Time    mtxt.BeatTime
	Target  mtxt.NoteTarget
	OffVel  *float64
	Channel *int
}

type rawCC struct {
	rawBase
	Time          mtxt.BeatTime
	Note          *mtxt.NoteTarget
	Controller    string
	Value         float64
	Channel       *int
	TransCurve    *float64
	TransTime     *mtxt.BeatTime
	TransInterval *float64
}

type rawVoice struct {
	rawBase
	Time    mtxt.BeatTime
	Channel *int
	Voices  []string
}

type rawTempo struct {
	rawBase
	Time          mtxt.BeatTime
	BPM           float64
	TransCurve    *float64
	TransTime     *mtxt.BeatTime
	TransInterval *float64
}

type rawTimeSig struct {
	rawBase
	Time mtxt.BeatTime
	Sig  mtxt.TimeSignature
}

type rawTuning struct {
	rawBase
	Time   mtxt.BeatTime
	Target string
	Cents  float64
}

type rawReset struct {
	rawBase
	Time   mtxt.BeatTime
	Target string
}

type rawSysex struct {
	rawBase
	Time  mtxt.BeatTime
	Bytes []byte
}
