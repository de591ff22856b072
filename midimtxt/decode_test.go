package midimtxt_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/gomtxt/mtxt"
	"github.com/gomtxt/mtxt/midimtxt"
)

func buildSMF(t *testing.T, ppq uint16, build func(tr *smf.Track)) *smf.SMF {
	t.Helper()
	s := smf.NewSMF1()
	s.TimeFormat = smf.MetricTicks(ppq)
	tr := make(smf.Track, 0, 8)
	build(&tr)
	tr.Close(0)
	s.Add(tr)
	return s
}

func TestValidateRejectsEmptySMF(t *testing.T) {
	s := smf.NewSMF1()
	err := midimtxt.Validate(s)
	require.Error(t, err)
}

func TestDecodeSeparatesNoteOnAndNoteOffByDefault(t *testing.T) {
	s := buildSMF(t, 480, func(tr *smf.Track) {
		tr.Add(0, midi.NoteOn(0, 60, 100))
		tr.Add(480, midi.NoteOffVelocity(0, 60, 64))
	})

	_, store, diags := midimtxt.Decode(s, midimtxt.DecodeOptions{})
	require.False(t, diags.HasErrors())

	var onCount, offCount int
	for _, r := range store.Records() {
		switch r.(type) {
		case mtxt.NoteOn:
			onCount++
		case mtxt.NoteOff:
			offCount++
		}
	}
	assert.Equal(t, 1, onCount)
	assert.Equal(t, 1, offCount)
}

func TestDecodeMergesNoteOnOffIntoNoteEventWhenRequested(t *testing.T) {
	s := buildSMF(t, 480, func(tr *smf.Track) {
		tr.Add(0, midi.NoteOn(0, 60, 100))
		tr.Add(480, midi.NoteOffVelocity(0, 60, 64))
	})

	_, store, diags := midimtxt.Decode(s, midimtxt.DecodeOptions{MergeNotes: true})
	require.False(t, diags.HasErrors())

	var events int
	for _, r := range store.Records() {
		if ne, ok := r.(mtxt.NoteEvent); ok {
			events++
			assert.InDelta(t, 1.0, ne.Duration.AsFloat(), 1e-6)
		}
		if _, ok := r.(mtxt.NoteOn); ok {
			t.Errorf("MergeNotes should not leave a standalone NoteOn")
		}
	}
	assert.Equal(t, 1, events)
}

func TestDecodeVelocityZeroNoteOnBecomesNoteOff(t *testing.T) {
	s := buildSMF(t, 480, func(tr *smf.Track) {
		tr.Add(0, midi.NoteOn(0, 60, 100))
		tr.Add(240, midi.NoteOn(0, 60, 0))
	})

	_, store, diags := midimtxt.Decode(s, midimtxt.DecodeOptions{})
	require.False(t, diags.HasErrors())

	var offCount int
	for _, r := range store.Records() {
		if _, ok := r.(mtxt.NoteOff); ok {
			offCount++
		}
	}
	assert.Equal(t, 1, offCount)
}

func TestDecodeTracksTempoMeta(t *testing.T) {
	s := buildSMF(t, 480, func(tr *smf.Track) {
		tr.Add(0, smf.MetaTempo(140))
	})

	_, store, diags := midimtxt.Decode(s, midimtxt.DecodeOptions{})
	require.False(t, diags.HasErrors())

	var found bool
	for _, r := range store.Records() {
		if tempo, ok := r.(mtxt.Tempo); ok {
			found = true
			assert.InDelta(t, 140.0, tempo.BPM, 1e-6)
		}
	}
	assert.True(t, found, "expected a decoded Tempo record")
}

func TestDecodePitchBendConvertsToSemitonesCC(t *testing.T) {
	s := buildSMF(t, 480, func(tr *smf.Track) {
		tr.Add(0, midi.Pitchbend(0, 8192))
	})

	_, store, diags := midimtxt.Decode(s, midimtxt.DecodeOptions{PitchBendRangeSemitones: 2})
	require.False(t, diags.HasErrors())

	var found bool
	for _, r := range store.Records() {
		if cc, ok := r.(mtxt.CC); ok && cc.Controller == "pitch" {
			found = true
			assert.InDelta(t, 2.0, cc.Value, 1e-3)
		}
	}
	assert.True(t, found, "expected a decoded pitch CC record")
}
