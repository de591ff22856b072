// Package midimtxt implements the Standard MIDI File bridge (§4.G
// decoder, §4.H encoder): lossless-as-possible bidirectional conversion
// between an mtxt.Store and a Standard MIDI File, built on
// gitlab.com/gomidi/midi/v2 and its smf subpackage.
package midimtxt

import (
	"strconv"
	"strings"

	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/gomtxt/mtxt"
)

// DecodeOptions controls the import from SMF to mtxt.
type DecodeOptions struct {
	// MergeNotes, when true, collapses a NoteOn/NoteOff pair on the same
	// track, channel and key into a single NoteEvent
	// with a resolved Duration, instead of emitting them as separate
	// NoteOn/NoteOff records.
	MergeNotes bool
	// PitchBendRangeSemitones is the assumed RPN pitch-bend range used to
	// convert pitch-wheel messages to semitones (§4.G); defaults to 2
	// semitones (the GM default) if zero.
	PitchBendRangeSemitones float64
}

type decodeState struct {
	opts       DecodeOptions
	store      *mtxt.Store
	diags      *mtxt.Diagnostics
	bpm        float64
	ppq        uint16
	openNotes  map[noteOnKey]openNote
	lineCursor int
	// trackChannel overrides the logical mtxt channel for events on a given
	// SMF track, restoring the original channel number a "channelmap" meta
	// entry recorded at encode time (§4.H) for channels >= 16 or channels
	// remapped to a different MIDI slot to avoid a collision.
	trackChannel map[uint8]int
}

type noteOnKey struct {
	track, channel, key uint8
}

type openNote struct {
	time     mtxt.BeatTime
	velocity float64
}

// Decode converts a parsed Standard MIDI File into an mtxt.Version and
// Store. The returned Version is always 1.0, since SMF carries no MTXT
// format version of its own.
func Decode(s *smf.SMF, opts DecodeOptions) (mtxt.Version, *mtxt.Store, *mtxt.Diagnostics) {
	if opts.PitchBendRangeSemitones == 0 {
		opts.PitchBendRangeSemitones = 2.0
	}
	ds := &decodeState{
		opts:         opts,
		store:        mtxt.NewStore(),
		diags:        &mtxt.Diagnostics{},
		bpm:          120.0,
		ppq:          ticksPerQuarter(s),
		openNotes:    make(map[noteOnKey]openNote),
		trackChannel: make(map[uint8]int),
	}

	for trackIdx, track := range s.Tracks {
		var ticks int64
		for _, ev := range track {
			ticks += int64(ev.Delta)
			t := ds.ticksToBeat(ticks)
			ds.decodeEvent(uint8(trackIdx), t, ev.Message)
		}
	}

	ds.store.Sort()
	version := mtxt.NewVersion(0, 1, 0)
	return version, ds.store, ds.diags
}

func ticksPerQuarter(s *smf.SMF) uint16 {
	if mt, ok := s.TimeFormat.(smf.MetricTicks); ok {
		return uint16(mt.Ticks16th() * 4)
	}
	return 480
}

// ticksToBeat converts an absolute tick count to beats by dividing by the
// file's ticks per quarter note; tempo plays no part, since MTXT's beat
// unit is always a quarter note (§2), matching SMF's metric-ticks
// convention directly.
func (ds *decodeState) ticksToBeat(ticks int64) mtxt.BeatTime {
	if ds.ppq == 0 {
		return mtxt.Zero()
	}
	beats := float64(ticks) / float64(ds.ppq)
	return mtxt.FromFloat(beats)
}

func (ds *decodeState) decodeEvent(track uint8, t mtxt.BeatTime, msg smf.Message) {
	var channel, key, velocity uint8
	var cc, program uint8
	var value uint8
	var bend int16

	switch {
	case msg.GetNoteOn(&channel, &key, &velocity):
		ds.decodeNoteOn(track, t, channel, key, velocity)
	case msg.GetNoteOff(&channel, &key, &velocity):
		ds.decodeNoteOff(track, t, channel, key, velocity)
	case msg.GetControlChange(&channel, &cc, &value):
		ds.decodeCC(track, t, channel, cc, value)
	case msg.GetProgramChange(&channel, &program):
		ds.store.Append(mtxt.NewVoice(0, t, ds.logicalChannel(track, channel), ProgramToVoice(program)))
	case msg.GetPitchBend(&channel, &bend, nil):
		ds.decodePitchBend(track, t, channel, bend)
	default:
		ds.decodeMeta(track, t, msg)
	}
}

// logicalChannel restores the original mtxt channel number for a message
// decoded on the given SMF track, following any "channelmap" override
// recorded for that track, or the raw MIDI channel byte otherwise.
func (ds *decodeState) logicalChannel(track uint8, channel uint8) int {
	if ch, ok := ds.trackChannel[track]; ok {
		return ch
	}
	return int(channel)
}

func (ds *decodeState) decodeNoteOn(track uint8, t mtxt.BeatTime, channel, key, velocity uint8) {
	if velocity == 0 {
		ds.decodeNoteOff(track, t, channel, key, 64)
		return
	}
	k := noteOnKey{track: track, channel: channel, key: key}
	ds.openNotes[k] = openNote{time: t, velocity: float64(velocity) / 127.0}
	if ds.opts.MergeNotes {
		return
	}
	note := midiNumberToNote(key)
	ds.store.Append(mtxt.NewNoteOn(0, t, note, float64(velocity)/127.0, ds.logicalChannel(track, channel)))
}

func (ds *decodeState) decodeNoteOff(track uint8, t mtxt.BeatTime, channel, key, offVel uint8) {
	k := noteOnKey{track: track, channel: channel, key: key}
	note := midiNumberToNote(key)
	logicalCh := ds.logicalChannel(track, channel)
	if ds.opts.MergeNotes {
		if on, ok := ds.openNotes[k]; ok {
			delete(ds.openNotes, k)
			dur := t.Sub(on.time)
			ds.store.Append(mtxt.NewNoteEvent(0, on.time, mtxt.NoteTarget{Note: &note}, dur, on.velocity, float64(offVel)/127.0, logicalCh))
			return
		}
	}
	delete(ds.openNotes, k)
	ds.store.Append(mtxt.NewNoteOff(0, t, note, float64(offVel)/127.0, logicalCh))
}

func (ds *decodeState) decodeCC(track uint8, t mtxt.BeatTime, channel, cc, value uint8) {
	name := ControllerToName(cc)
	ds.store.Append(mtxt.NewCC(0, t, name, float64(value)/127.0, ds.logicalChannel(track, channel), nil, nil))
}

func (ds *decodeState) decodePitchBend(track uint8, t mtxt.BeatTime, channel uint8, bend int16) {
	semitones := (float64(bend) / 8192.0) * ds.opts.PitchBendRangeSemitones
	ds.store.Append(mtxt.NewCC(0, t, "pitch", semitones, ds.logicalChannel(track, channel), nil, nil))
}

func (ds *decodeState) decodeMeta(track uint8, t mtxt.BeatTime, msg smf.Message) {
	var bpm float64
	var num, denom uint8
	var text string
	var data []byte

	switch {
	case msg.GetMetaTempo(&bpm):
		ds.bpm = bpm
		ds.store.Append(mtxt.NewTempo(0, t, bpm, nil))
	case msg.GetMetaTimeSig(&num, &denom, nil, nil):
		ds.store.Append(mtxt.NewTimeSig(0, t, mtxt.TimeSignature{Num: int(num), Den: int(denom)}))
	case msg.GetMetaLyric(&text):
		ds.store.Append(mtxt.NewMeta(0, &t, mtxt.ScopeGlobal, 0, "lyric", text))
	case msg.GetMetaMarker(&text):
		ds.store.Append(mtxt.NewMeta(0, &t, mtxt.ScopeGlobal, 0, "marker", text))
	case msg.GetMetaTrackName(&text):
		ds.store.Append(mtxt.NewMeta(0, &t, mtxt.ScopeGlobal, 0, "track_name", text))
	case msg.GetMetaText(&text):
		if trackIdx, ch, ok := parseChannelMap(text); ok {
			ds.trackChannel[trackIdx] = ch
			return
		}
		if key, value, ok := strings.Cut(text, ": "); ok {
			ds.store.Append(mtxt.NewMeta(0, &t, mtxt.ScopeGlobal, 0, key, value))
			return
		}
		ds.store.Append(mtxt.NewMeta(0, &t, mtxt.ScopeGlobal, 0, "text", text))
	case msg.GetSysEx(&data):
		ds.store.Append(mtxt.NewSysex(0, &t, append([]byte(nil), data...)))
	default:
		// unrecognized meta/system messages are dropped; §4.G names this
		// as an accepted lossy-round-trip case (Non-goal: full meta
		// message coverage).
	}
}

// parseChannelMap recognizes the "channelmap <ch>=<track>" global meta text
// the encoder writes for a channel >= 16, or one remapped to a different
// MIDI slot to avoid a collision (§4.H), returning the SMF track index and
// the logical mtxt channel it houses.
func parseChannelMap(text string) (track uint8, ch int, ok bool) {
	const prefix = "channelmap "
	if !strings.HasPrefix(text, prefix) {
		return 0, 0, false
	}
	pair := strings.SplitN(text[len(prefix):], "=", 2)
	if len(pair) != 2 {
		return 0, 0, false
	}
	chVal, err1 := strconv.Atoi(pair[0])
	trackVal, err2 := strconv.Atoi(pair[1])
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return uint8(trackVal), chVal, true
}

func midiNumberToNote(key uint8) mtxt.Note {
	octave := int(key)/12 - 1
	pc := mtxt.PitchClass(int(key) % 12)
	return mtxt.Note{PitchClass: pc, Octave: octave}
}

// Validate reports a ConversionError if s has no tracks at all, the one
// structural precondition Decode relies on.
func Validate(s *smf.SMF) error {
	if len(s.Tracks) == 0 {
		return &mtxt.ConversionError{Message: "SMF has no tracks"}
	}
	return nil
}
