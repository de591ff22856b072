package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gomtxt/mtxt"
)

// directiveValue is the parsed right-hand side of a "key=value" token,
// already typed by key (§4.B/§4.C).
type directiveValue struct {
	kind mtxt.DirectiveKind
	num  float64
	ch   int
	dur  mtxt.BeatTime
}

func tryParseDirectiveToken(part string, lineNo int) (*directiveValue, error) {
	key, value, ok := SplitKV(part)
	if !ok {
		return nil, nil
	}
	switch key {
	case "ch":
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 || n > 65535 {
			return nil, &mtxt.ParseError{Line: lineNo, Message: "invalid channel number " + value}
		}
		return &directiveValue{kind: mtxt.DirectiveChannel, ch: n}, nil
	case "vel":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil || v < 0 || v > 1 {
			return nil, &mtxt.ParseError{Line: lineNo, Message: "velocity must be 0.0-1.0"}
		}
		return &directiveValue{kind: mtxt.DirectiveVelocity, num: v}, nil
	case "offvel":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil || v < 0 || v > 1 {
			return nil, &mtxt.ParseError{Line: lineNo, Message: "off velocity must be 0.0-1.0"}
		}
		return &directiveValue{kind: mtxt.DirectiveOffVelocity, num: v}, nil
	case "dur":
		d, err := mtxt.ParseBeatTime(value)
		if err != nil {
			return nil, &mtxt.ParseError{Line: lineNo, Message: "invalid duration value"}
		}
		return &directiveValue{kind: mtxt.DirectiveDuration, dur: d}, nil
	case "transition_curve":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, &mtxt.ParseError{Line: lineNo, Message: "invalid transition_curve value"}
		}
		return &directiveValue{kind: mtxt.DirectiveTransitionCurve, num: v}, nil
	case "transition_time":
		d, err := mtxt.ParseBeatTime(value)
		if err != nil {
			return nil, &mtxt.ParseError{Line: lineNo, Message: "invalid transition_time value"}
		}
		return &directiveValue{kind: -1, dur: d}, nil // special-cased: not a global directive
	case "transition_interval":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil || v < 0 {
			return nil, &mtxt.ParseError{Line: lineNo, Message: "transition_interval must be >= 0.0"}
		}
		return &directiveValue{kind: mtxt.DirectiveTransitionInterval, num: v}, nil
	default:
		return nil, &mtxt.ParseError{Line: lineNo, Message: "unknown parameter \"" + key + "\""}
	}
}

const transitionTimeKind mtxt.DirectiveKind = -1

func parseLine(lineNo int, raw string) (rawRecord, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return rawEmpty{rawBase{lineNo}}, nil
	}
	if strings.HasPrefix(trimmed, "//") {
		return rawComment{rawBase{lineNo}, strings.TrimSpace(trimmed[2:]), false}, nil
	}

	content, comment, hasComment := SplitInlineComment(trimmed)
	content = strings.TrimSpace(content)
	if content == "" {
		return rawComment{rawBase{lineNo}, comment, false}, nil
	}

	parts := strings.Fields(content)

	rec, err := parseContent(lineNo, parts)
	if err != nil {
		return nil, err
	}
	if hasComment {
		// Inline comments on event lines are discarded; only whole-line
		// comments become Comment records.
		_ = comment
	}
	return rec, nil
}

func parseContent(lineNo int, parts []string) (rawRecord, error) {
	switch parts[0] {
	case "mtxt":
		if len(parts) != 2 {
			return nil, &mtxt.ParseError{Line: lineNo, Message: "invalid file version, expected \"mtxt 1.0\""}
		}
		major, minor, err := parseVersion(parts[1])
		if err != nil {
			return nil, &mtxt.ParseError{Line: lineNo, Message: err.Error()}
		}
		if major != 1 {
			return nil, &mtxt.ParseError{Line: lineNo, Message: "unsupported mtxt version " + parts[1]}
		}
		return rawVersion{rawBase{lineNo}, major, minor}, nil

	case "meta":
		return parseMeta(lineNo, nil, parts[1:])

	case "alias":
		if len(parts) < 3 {
			return nil, &mtxt.ParseError{Line: lineNo, Message: "alias requires name and at least one note"}
		}
		name := parts[1]
		if _, err := mtxt.ParseNote(name); err == nil {
			return nil, &mtxt.ParseError{Line: lineNo, Message: "cannot redefine note \"" + name + "\" as alias"}
		}
		merged := strings.Join(parts[2:], " ")
		var notes []mtxt.Note
		for _, tok := range strings.Split(merged, ",") {
			n, err := mtxt.ParseNote(strings.TrimSpace(tok))
			if err != nil {
				return nil, &mtxt.ParseError{Line: lineNo, Message: err.Error()}
			}
			notes = append(notes, n)
		}
		return rawAliasDef{rawBase{lineNo}, name, notes}, nil

	default:
		if dv, err := tryParseDirectiveToken(parts[0], lineNo); err != nil {
			return nil, err
		} else if dv != nil {
			if len(parts) > 1 {
				return nil, &mtxt.ParseError{Line: lineNo, Message: "cannot parse global directive " + strings.Join(parts, " ")}
			}
			if dv.kind == transitionTimeKind {
				return nil, &mtxt.ParseError{Line: lineNo, Message: "transition_time= is not supported as a global directive"}
			}
			return rawDirective{rawBase{lineNo}, dv.kind, dv.num, dv.ch, dv.dur}, nil
		}

		if len(parts) >= 2 {
			if t, err := mtxt.ParseBeatTime(parts[0]); err == nil {
				return parseTimedEvent(lineNo, t, parts[1], parts[2:])
			}
		}
		return nil, &mtxt.ParseError{Line: lineNo, Message: "cannot parse \"" + strings.Join(parts, " ") + "\""}
	}
}

func parseVersion(s string) (int, int, error) {
	split := strings.SplitN(s, ".", 2)
	major, err := strconv.Atoi(split[0])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid version %q", s)
	}
	minor := 0
	if len(split) == 2 {
		minor, err = strconv.Atoi(split[1])
		if err != nil {
			return 0, 0, fmt.Errorf("invalid version %q", s)
		}
	}
	return major, minor, nil
}

func parseTimedEvent(lineNo int, t mtxt.BeatTime, keyword string, rest []string) (rawRecord, error) {
	switch keyword {
	case "note":
		return parseNoteEvent(lineNo, t, rest)
	case "on":
		return parseNoteOnEvent(lineNo, t, rest)
	case "off":
		return parseNoteOffEvent(lineNo, t, rest)
	case "cc":
		return parseCCEvent(lineNo, t, rest)
	case "voice":
		return parseVoiceEvent(lineNo, t, rest)
	case "tempo":
		return parseTempoEvent(lineNo, t, rest)
	case "timesig":
		return parseTimeSigEvent(lineNo, t, rest)
	case "tuning":
		return parseTuningEvent(lineNo, t, rest)
	case "reset":
		return parseResetEvent(lineNo, t, rest)
	case "meta":
		return parseMeta(lineNo, &t, rest)
	case "sysex":
		return parseSysexEvent(lineNo, t, rest)
	default:
		return nil, &mtxt.ParseError{Line: lineNo, Message: "unknown event type: " + keyword}
	}
}

func parseNoteEvent(lineNo int, t mtxt.BeatTime, parts []string) (rawRecord, error) {
	if len(parts) == 0 {
		return nil, &mtxt.ParseError{Line: lineNo, Message: "note event requires note name"}
	}
	rec := rawNote{rawBase: rawBase{lineNo}, Time: t, Target: mtxt.ParseNoteTarget(parts[0])}
	for _, part := range parts[1:] {
		dv, err := tryParseDirectiveToken(part, lineNo)
		if err != nil {
			return nil, err
		}
		if dv == nil {
			return nil, &mtxt.ParseError{Line: lineNo, Message: "unsupported parameter \"" + part + "\""}
		}
		switch dv.kind {
		case mtxt.DirectiveDuration:
			d := dv.dur
			rec.Duration = &d
		case mtxt.DirectiveVelocity:
			v := dv.num
			rec.Velocity = &v
		case mtxt.DirectiveOffVelocity:
			v := dv.num
			rec.OffVel = &v
		case mtxt.DirectiveChannel:
			c := dv.ch
			rec.Channel = &c
		default:
			return nil, &mtxt.ParseError{Line: lineNo, Message: "unsupported parameter \"" + part + "\""}
		}
	}
	return rec, nil
}

func parseNoteOnEvent(lineNo int, t mtxt.BeatTime, parts []string) (rawRecord, error) {
	if len(parts) == 0 {
		return nil, &mtxt.ParseError{Line: lineNo, Message: "note on event requires note name"}
	}
	rec := rawNoteOn{rawBase: rawBase{lineNo}, Time: t, Target: mtxt.ParseNoteTarget(parts[0])}
	for _, part := range parts[1:] {
		dv, err := tryParseDirectiveToken(part, lineNo)
		if err != nil {
			return nil, err
		}
		if dv == nil {
			return nil, &mtxt.ParseError{Line: lineNo, Message: "unsupported parameter \"" + part + "\""}
		}
		switch dv.kind {
		case mtxt.DirectiveVelocity:
			v := dv.num
			rec.Velocity = &v
		case mtxt.DirectiveChannel:
			c := dv.ch
			rec.Channel = &c
		default:
			return nil, &mtxt.ParseError{Line: lineNo, Message: "unsupported parameter \"" + part + "\""}
		}
	}
	return rec, nil
}

func parseNoteOffEvent(lineNo int, t mtxt.BeatTime, parts []string) (rawRecord, error) {
	if len(parts) == 0 {
		return nil, &mtxt.ParseError{Line: lineNo, Message: "note off event requires note name"}
	}
	rec := rawNoteOff{rawBase: rawBase{lineNo}, Time: t, Target: mtxt.ParseNoteTarget(parts[0])}
	for _, part := range parts[1:] {
		dv, err := tryParseDirectiveToken(part, lineNo)
		if err != nil {
			return nil, err
		}
		if dv == nil {
			return nil, &mtxt.ParseError{Line: lineNo, Message: "unsupported parameter \"" + part + "\""}
		}
		switch dv.kind {
		case mtxt.DirectiveOffVelocity:
			v := dv.num
			rec.OffVel = &v
		case mtxt.DirectiveChannel:
			c := dv.ch
			rec.Channel = &c
		default:
			return nil, &mtxt.ParseError{Line: lineNo, Message: "unsupported parameter \"" + part + "\""}
		}
	}
	return rec, nil
}

func parseCCEvent(lineNo int, t mtxt.BeatTime, parts []string) (rawRecord, error) {
	var note *mtxt.NoteTarget
	var controller string
	var value float64
	var idx int

	switch {
	case len(parts) >= 3 && isFloatToken(parts[2]):
		nt := mtxt.ParseNoteTarget(parts[0])
		note = &nt
		controller = parts[1]
		value, _ = strconv.ParseFloat(parts[2], 64)
		idx = 3
	case len(parts) >= 2 && isFloatToken(parts[1]):
		controller = parts[0]
		value, _ = strconv.ParseFloat(parts[1], 64)
		idx = 2
	default:
		return nil, &mtxt.ParseError{Line: lineNo, Message: "cc event requires controller and value (float)"}
	}

	rec := rawCC{rawBase: rawBase{lineNo}, Time: t, Note: note, Controller: controller, Value: value}
	for _, part := range parts[idx:] {
		dv, err := tryParseDirectiveToken(part, lineNo)
		if err != nil {
			return nil, err
		}
		if dv == nil {
			return nil, &mtxt.ParseError{Line: lineNo, Message: "unsupported parameter \"" + part + "\""}
		}
		switch dv.kind {
		case mtxt.DirectiveChannel:
			c := dv.ch
			rec.Channel = &c
		case mtxt.DirectiveTransitionCurve:
			v := dv.num
			rec.TransCurve = &v
		case transitionTimeKind:
			d := dv.dur
			rec.TransTime = &d
		case mtxt.DirectiveTransitionInterval:
			v := dv.num
			rec.TransInterval = &v
		default:
			return nil, &mtxt.ParseError{Line: lineNo, Message: "unsupported parameter \"" + part + "\""}
		}
	}
	return rec, nil
}

func isFloatToken(s string) bool {
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}

func parseVoiceEvent(lineNo int, t mtxt.BeatTime, parts []string) (rawRecord, error) {
	idx := 0
	var channel *int
	if len(parts) > 0 {
		if dv, err := tryParseDirectiveToken(parts[0], lineNo); err == nil && dv != nil {
			if dv.kind != mtxt.DirectiveChannel {
				return nil, &mtxt.ParseError{Line: lineNo, Message: "unsupported parameter \"" + parts[0] + "\""}
			}
			c := dv.ch
			channel = &c
			idx = 1
		}
	}
	rest := parts[idx:]
	if len(rest) == 0 {
		return nil, &mtxt.ParseError{Line: lineNo, Message: "voice event requires voice list"}
	}
	joined := strings.Join(rest, " ")
	var voices []string
	for _, v := range strings.Split(joined, ",") {
		v = strings.TrimSpace(v)
		if v != "" {
			voices = append(voices, v)
		}
	}
	return rawVoice{rawBase{lineNo}, t, channel, voices}, nil
}

func parseTempoEvent(lineNo int, t mtxt.BeatTime, parts []string) (rawRecord, error) {
	if len(parts) == 0 {
		return nil, &mtxt.ParseError{Line: lineNo, Message: "tempo event requires a BPM value"}
	}
	bpm, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return nil, &mtxt.ParseError{Line: lineNo, Message: "invalid bpm value"}
	}
	rec := rawTempo{rawBase: rawBase{lineNo}, Time: t, BPM: bpm}
	for _, part := range parts[1:] {
		dv, err := tryParseDirectiveToken(part, lineNo)
		if err != nil {
			return nil, err
		}
		if dv == nil {
			return nil, &mtxt.ParseError{Line: lineNo, Message: "invalid tempo command"}
		}
		switch dv.kind {
		case mtxt.DirectiveTransitionCurve:
			v := dv.num
			rec.TransCurve = &v
		case transitionTimeKind:
			d := dv.dur
			rec.TransTime = &d
		case mtxt.DirectiveTransitionInterval:
			v := dv.num
			rec.TransInterval = &v
		default:
			return nil, &mtxt.ParseError{Line: lineNo, Message: "unsupported parameter \"" + part + "\""}
		}
	}
	return rec, nil
}

func parseTimeSigEvent(lineNo int, t mtxt.BeatTime, parts []string) (rawRecord, error) {
	if len(parts) != 1 {
		return nil, &mtxt.ParseError{Line: lineNo, Message: "time signature event requires signature"}
	}
	sig, err := parseTimeSignature(parts[0])
	if err != nil {
		return nil, &mtxt.ParseError{Line: lineNo, Message: err.Error()}
	}
	return rawTimeSig{rawBase{lineNo}, t, sig}, nil
}

func parseTimeSignature(s string) (mtxt.TimeSignature, error) {
	split := strings.SplitN(s, "/", 2)
	if len(split) != 2 {
		return mtxt.TimeSignature{}, fmt.Errorf("invalid time signature %q", s)
	}
	num, err1 := strconv.Atoi(split[0])
	den, err2 := strconv.Atoi(split[1])
	if err1 != nil || err2 != nil || num <= 0 {
		return mtxt.TimeSignature{}, fmt.Errorf("invalid time signature %q", s)
	}
	switch den {
	case 1, 2, 4, 8, 16, 32, 64:
	default:
		return mtxt.TimeSignature{}, fmt.Errorf("invalid time signature denominator %d", den)
	}
	return mtxt.TimeSignature{Num: num, Den: den}, nil
}

func parseTuningEvent(lineNo int, t mtxt.BeatTime, parts []string) (rawRecord, error) {
	if len(parts) != 2 {
		return nil, &mtxt.ParseError{Line: lineNo, Message: "tuning event requires target and cents"}
	}
	cents, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return nil, &mtxt.ParseError{Line: lineNo, Message: "invalid cents value"}
	}
	if cents < -100.0 || cents > 100.0 {
		return nil, &mtxt.RangeError{Line: lineNo, Field: "cents", Value: cents, Message: "must be within [-100,100]"}
	}
	return rawTuning{rawBase{lineNo}, t, parts[0], cents}, nil
}

func parseResetEvent(lineNo int, t mtxt.BeatTime, parts []string) (rawRecord, error) {
	if len(parts) != 1 {
		return nil, &mtxt.ParseError{Line: lineNo, Message: "reset event requires target"}
	}
	return rawReset{rawBase{lineNo}, t, parts[0]}, nil
}

func parseMeta(lineNo int, t *mtxt.BeatTime, parts []string) (rawRecord, error) {
	if len(parts) == 0 {
		return nil, &mtxt.ParseError{Line: lineNo, Message: "meta event requires type and value"}
	}
	if parts[0] == "global" {
		if len(parts) < 3 {
			return nil, &mtxt.ParseError{Line: lineNo, Message: "global meta event requires type and value"}
		}
		return rawMeta{rawBase: rawBase{lineNo}, Time: t, Global: true, Key: parts[1], Value: strings.Join(parts[2:], " ")}, nil
	}

	idx := 0
	var channel *int
	if dv, err := tryParseDirectiveToken(parts[0], lineNo); err == nil && dv != nil && dv.kind == mtxt.DirectiveChannel {
		c := dv.ch
		channel = &c
		idx = 1
	}
	if len(parts)-idx < 2 {
		return nil, &mtxt.ParseError{Line: lineNo, Message: "meta event requires type and value"}
	}
	// An unscoped meta (no inline ch=) is global regardless of whether it
	// carries a time prefix or a ch= default is active (Open Question 3).
	global := channel == nil
	return rawMeta{rawBase: rawBase{lineNo}, Time: t, Global: global, Channel: channel, Key: parts[idx], Value: strings.Join(parts[idx+1:], " ")}, nil
}

func parseSysexEvent(lineNo int, t mtxt.BeatTime, parts []string) (rawRecord, error) {
	data := make([]byte, 0, len(parts))
	for _, part := range parts {
		b, err := strconv.ParseUint(part, 16, 8)
		if err != nil {
			return nil, &mtxt.ParseError{Line: lineNo, Message: "invalid hex byte: " + part}
		}
		data = append(data, byte(b))
	}
	return rawSysex{rawBase{lineNo}, t, data}, nil
}
