// Package serialize implements the Canonical Serializer (§4.E): rendering
// an Event Store back to MTXT text, with optional directive extraction
// (leading default directives for the most common channel, velocity and
// off-velocity), directive application (dropping directive lines), line
// sorting, and rune-width-aware column alignment.
package serialize

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/gomtxt/mtxt"
	"golang.org/x/text/width"
)

// Options controls the text the Serializer produces.
type Options struct {
	// ExtractDirectives prepends a default directive for the majority value
	// of channel, velocity and off-velocity across the records. Duration
	// and the transition fields are not extracted, and every record still
	// writes all of its fields inline.
	ExtractDirectives bool
	// ApplyDirectives is the inverse: every directive-set field is
	// materialized inline on every record and no DefaultDirective lines
	// are emitted.
	ApplyDirectives bool
	// Indent, when > 0, pads the first token of every record to this many
	// display columns using rune-width-aware spacing (so wide CJK aliases
	// still align).
	Indent int
	// PreserveComments writes Comment records as "//" lines where they fall
	// in the store's order; being untimed, they sort at beat 0 rather than
	// at their source line. Otherwise they are dropped from the output.
	PreserveComments bool
}

// Serialize renders store (assumed already Sort()ed) to canonical MTXT text.
func Serialize(version mtxt.Version, store *mtxt.Store, opts Options) string {
	records := store.Records()
	if opts.ExtractDirectives {
		records = extractDirectives(records)
	} else if opts.ApplyDirectives {
		records = applyDirectives(records)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "mtxt %d.%d\n", version.Major, version.Minor)
	for _, r := range records {
		if c, ok := r.(mtxt.Comment); ok {
			if !opts.PreserveComments {
				continue
			}
			writeComment(&b, c)
			continue
		}
		line := renderRecord(r)
		if opts.Indent > 0 {
			line = indentLine(line, opts.Indent)
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}

func writeComment(b *strings.Builder, c mtxt.Comment) {
	if c.Inline {
		b.WriteString("// " + c.Text + "\n")
		return
	}
	b.WriteString("// " + c.Text + "\n")
}

func renderRecord(r mtxt.Record) string {
	switch rec := r.(type) {
	case mtxt.AliasDef:
		return renderAlias(rec.Def)
	case mtxt.DefaultDirective:
		return renderDirective(rec)
	case mtxt.Meta:
		return renderMeta(rec)
	case mtxt.NoteEvent:
		return renderNoteEvent(rec)
	case mtxt.NoteOn:
		return renderNoteOn(rec)
	case mtxt.NoteOff:
		return renderNoteOff(rec)
	case mtxt.CC:
		return renderCC(rec)
	case mtxt.Voice:
		return renderVoice(rec)
	case mtxt.Tempo:
		return renderTempo(rec)
	case mtxt.TimeSig:
		return fmt.Sprintf("%s timesig %d/%d", rec.Time().String(), rec.Signature.Num, rec.Signature.Den)
	case mtxt.Tuning:
		return renderTuning(rec)
	case mtxt.Reset:
		return renderReset(rec)
	case mtxt.Sysex:
		return renderSysex(rec)
	default:
		return ""
	}
}

func renderAlias(def mtxt.AliasDefinition) string {
	notes := make([]string, len(def.Notes))
	for i, n := range def.Notes {
		notes[i] = n.String()
	}
	return "alias " + def.Name + " " + strings.Join(notes, ", ")
}

func renderDirective(d mtxt.DefaultDirective) string {
	switch d.Kind {
	case mtxt.DirectiveChannel:
		return fmt.Sprintf("ch=%d", d.ChannelVal)
	case mtxt.DirectiveVelocity:
		return "vel=" + formatNum(d.NumValue)
	case mtxt.DirectiveOffVelocity:
		return "offvel=" + formatNum(d.NumValue)
	case mtxt.DirectiveDuration:
		return "dur=" + d.DurationVal.String()
	case mtxt.DirectiveTransitionCurve:
		return "transition_curve=" + formatNum(d.NumValue)
	case mtxt.DirectiveTransitionInterval:
		return "transition_interval=" + formatNum(d.NumValue)
	default:
		return ""
	}
}

func renderMeta(m mtxt.Meta) string {
	var b strings.Builder
	if m.HasTime() {
		b.WriteString(m.Time().String() + " meta ")
		if m.Scope == mtxt.ScopeChannel {
			fmt.Fprintf(&b, "ch=%d ", m.Channel)
		}
	} else if m.Scope == mtxt.ScopeGlobal {
		b.WriteString("meta global ")
	} else {
		fmt.Fprintf(&b, "meta ch=%d ", m.Channel)
	}
	b.WriteString(m.Key + " " + m.Value)
	return b.String()
}

func renderNoteEvent(n mtxt.NoteEvent) string {
	return fmt.Sprintf("%s note %s ch=%d vel=%s offvel=%s dur=%s",
		n.Time().String(), n.Note.String(), n.Channel, formatNum(n.Velocity), formatNum(n.OffVel), n.Duration.String())
}

func renderNoteOn(n mtxt.NoteOn) string {
	return fmt.Sprintf("%s on %s ch=%d vel=%s", n.Time().String(), n.Note.String(), n.Channel, formatNum(n.Velocity))
}

func renderNoteOff(n mtxt.NoteOff) string {
	return fmt.Sprintf("%s off %s ch=%d offvel=%s", n.Time().String(), n.Note.String(), n.Channel, formatNum(n.OffVel))
}

func renderCC(c mtxt.CC) string {
	var b strings.Builder
	b.WriteString(c.Time().String() + " cc ")
	if c.Note != nil {
		b.WriteString(c.Note.String() + " ")
	}
	fmt.Fprintf(&b, "%s %s ch=%d", c.Controller, formatNum(c.Value), c.Channel)
	if c.Transition != nil && !c.Transition.IsZero() {
		fmt.Fprintf(&b, " transition_curve=%s transition_time=%s transition_interval=%s",
			formatNum(c.Transition.Curve), c.Transition.Time.String(), formatNum(c.Transition.IntervalMs))
	}
	return b.String()
}

func renderVoice(v mtxt.Voice) string {
	return fmt.Sprintf("%s voice ch=%d %s", v.Time().String(), v.Channel, strings.Join(v.Voices, ", "))
}

func renderTempo(t mtxt.Tempo) string {
	s := fmt.Sprintf("%s tempo %s", t.Time().String(), formatNum(t.BPM))
	if t.Transition != nil && !t.Transition.IsZero() {
		s += fmt.Sprintf(" transition_curve=%s transition_time=%s transition_interval=%s",
			formatNum(t.Transition.Curve), t.Transition.Time.String(), formatNum(t.Transition.IntervalMs))
	}
	return s
}

func renderTuning(tu mtxt.Tuning) string {
	target := ""
	if tu.TargetNote != nil {
		target = tu.TargetNote.String()
	} else if tu.TargetPitchClass != nil {
		target = tu.TargetPitchClass.String()
	}
	return fmt.Sprintf("%s tuning %s %s", tu.Time().String(), target, formatNum(tu.Cents))
}

func renderReset(r mtxt.Reset) string {
	switch r.Target {
	case mtxt.ResetAll:
		return r.Time().String() + " reset all"
	case mtxt.ResetTuning:
		return r.Time().String() + " reset tuning"
	default:
		return fmt.Sprintf("%s reset ch=%d", r.Time().String(), r.Channel)
	}
}

func renderSysex(s mtxt.Sysex) string {
	parts := make([]string, len(s.Bytes))
	for i, b := range s.Bytes {
		parts[i] = strconv.FormatUint(uint64(b), 16)
		if len(parts[i]) == 1 {
			parts[i] = "0" + parts[i]
		}
	}
	return s.Time().String() + " sysex " + strings.Join(parts, " ")
}

// formatNum mirrors mtxt's internal formatFloat: v is single-precision
// sourced, so it is rounded through float32 before rendering (e.g.
// 123456789123.456 becomes 123456790528.0).
func formatNum(v float64) string {
	s := strconv.FormatFloat(float64(float32(v)), 'f', 5, 64)
	s = strings.TrimRight(s, "0")
	if strings.HasSuffix(s, ".") {
		s += "0"
	}
	return s
}

// indentLine pads the line's first token with spaces to the given column
// count, measuring columns with east-asian width rules (so CJK alias names
// do not throw off alignment).
func indentLine(line string, cols int) string {
	idx := strings.IndexByte(line, ' ')
	if idx < 0 {
		return line
	}
	head, rest := line[:idx], line[idx:]
	w := displayWidth(head)
	if w >= cols {
		return head + rest
	}
	return head + strings.Repeat(" ", cols-w) + strings.TrimLeft(rest, " ")
}

func displayWidth(s string) int {
	n := 0
	for _, r := range s {
		p := width.LookupRune(r)
		switch p.Kind() {
		case width.EastAsianWide, width.EastAsianFullwidth:
			n += 2
		default:
			n++
		}
	}
	return n
}

// extractDirectives computes, for channel, velocity and off-velocity, the
// value that appears on the largest number of eligible records and
// prepends a DefaultDirective setting it. The records themselves pass
// through unchanged, so their inline values are still rendered.
func extractDirectives(records []mtxt.Record) []mtxt.Record {
	channelCounts := map[int]int{}
	velCounts := map[float64]int{}
	offvelCounts := map[float64]int{}
	for _, r := range records {
		switch rec := r.(type) {
		case mtxt.NoteEvent:
			channelCounts[rec.Channel]++
			velCounts[rec.Velocity]++
			offvelCounts[rec.OffVel]++
		case mtxt.NoteOn:
			channelCounts[rec.Channel]++
			velCounts[rec.Velocity]++
		case mtxt.NoteOff:
			channelCounts[rec.Channel]++
			offvelCounts[rec.OffVel]++
		case mtxt.CC:
			channelCounts[rec.Channel]++
		case mtxt.Voice:
			channelCounts[rec.Channel]++
		}
	}
	ch, chOK := majority(channelCounts)
	vel, velOK := majority(velCounts)
	offvel, offvelOK := majority(offvelCounts)

	out := make([]mtxt.Record, 0, len(records)+3)
	if chOK {
		out = append(out, mtxt.NewDefaultDirective(0, mtxt.DirectiveChannel, 0, ch, mtxt.Zero()))
	}
	if velOK {
		out = append(out, mtxt.NewDefaultDirective(0, mtxt.DirectiveVelocity, vel, 0, mtxt.Zero()))
	}
	if offvelOK {
		out = append(out, mtxt.NewDefaultDirective(0, mtxt.DirectiveOffVelocity, offvel, 0, mtxt.Zero()))
	}
	_ = chOK
	out = append(out, records...)
	return out
}

func majority[K comparable](counts map[K]int) (K, bool) {
	var best K
	bestN := 0
	for k, n := range counts {
		if n > bestN {
			best, bestN = k, n
		}
	}
	return best, bestN > 0
}

// applyDirectives is the inverse of extractDirectives: it is a no-op over
// the Store's already-resolved Records, since every record leaving
// Finalize already carries its fully materialized field values. It exists
// to make intent explicit at call sites and to suppress DefaultDirective
// records.
func applyDirectives(records []mtxt.Record) []mtxt.Record {
	out := make([]mtxt.Record, 0, len(records))
	for _, r := range records {
		if _, ok := r.(mtxt.DefaultDirective); ok {
			continue
		}
		out = append(out, r)
	}
	return out
}

// SortLines stably sorts rendered record lines lexicographically, used by
// the CLI's --sort option as a purely textual post-process over
// already-time-ranked output.
func SortLines(text string) string {
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	if len(lines) == 0 {
		return text
	}
	header, body := lines[0], lines[1:]
	sort.SliceStable(body, func(i, j int) bool { return body[i] < body[j] })
	return header + "\n" + strings.Join(body, "\n") + "\n"
}
