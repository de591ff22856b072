package midimtxt

// ccNames maps the General MIDI standard controller numbers (§4.G) to the
// canonical controller names used in MTXT cc records. Numbers without a
// standard name fall back to the synthesized "cc<N>" form on both decode
// and encode.
var ccNames = map[uint8]string{
	1:   "modulation",
	7:   "volume",
	10:  "pan",
	11:  "expression",
	64:  "sustain",
	121: "reset_all_controllers",
	123: "all_notes_off",
}

var ccNumbers = func() map[string]uint8 {
	m := make(map[string]uint8, len(ccNames))
	for n, name := range ccNames {
		m[name] = n
	}
	return m
}()

// ControllerToName returns the canonical MTXT name for a MIDI CC number.
func ControllerToName(n uint8) string {
	if name, ok := ccNames[n]; ok {
		return name
	}
	return ccNumberName(n)
}

// ControllerFromName returns the MIDI CC number for a canonical or
// "cc<N>" controller name, and false if it cannot be resolved.
func ControllerFromName(name string) (uint8, bool) {
	if n, ok := ccNumbers[name]; ok {
		return n, true
	}
	return parseCCNumberName(name)
}

// gmPrograms is the General MIDI instrument name table (program numbers
// 0-127), used for "voice" record round-tripping against Program Change.
var gmPrograms = [128]string{
	"acoustic_grand_piano", "bright_acoustic_piano", "electric_grand_piano", "honky_tonk_piano",
	"electric_piano_1", "electric_piano_2", "harpsichord", "clavinet",
	"celesta", "glockenspiel", "music_box", "vibraphone",
	"marimba", "xylophone", "tubular_bells", "dulcimer",
	"drawbar_organ", "percussive_organ", "rock_organ", "church_organ",
	"reed_organ", "accordion", "harmonica", "tango_accordion",
	"acoustic_guitar_nylon", "acoustic_guitar_steel", "electric_guitar_jazz", "electric_guitar_clean",
	"electric_guitar_muted", "overdriven_guitar", "distortion_guitar", "guitar_harmonics",
	"acoustic_bass", "electric_bass_finger", "electric_bass_pick", "fretless_bass",
	"slap_bass_1", "slap_bass_2", "synth_bass_1", "synth_bass_2",
	"violin", "viola", "cello", "contrabass",
	"tremolo_strings", "pizzicato_strings", "orchestral_harp", "timpani",
	"string_ensemble_1", "string_ensemble_2", "synth_strings_1", "synth_strings_2",
	"choir_aahs", "voice_oohs", "synth_voice", "orchestra_hit",
	"trumpet", "trombone", "tuba", "muted_trumpet",
	"french_horn", "brass_section", "synth_brass_1", "synth_brass_2",
	"soprano_sax", "alto_sax", "tenor_sax", "baritone_sax",
	"oboe", "english_horn", "bassoon", "clarinet",
	"piccolo", "flute", "recorder", "pan_flute",
	"blown_bottle", "shakuhachi", "whistle", "ocarina",
	"lead_1_square", "lead_2_sawtooth", "lead_3_calliope", "lead_4_chiff",
	"lead_5_charang", "lead_6_voice", "lead_7_fifths", "lead_8_bass_and_lead",
	"pad_1_new_age", "pad_2_warm", "pad_3_polysynth", "pad_4_choir",
	"pad_5_bowed", "pad_6_metallic", "pad_7_halo", "pad_8_sweep",
	"fx_1_rain", "fx_2_soundtrack", "fx_3_crystal", "fx_4_atmosphere",
	"fx_5_brightness", "fx_6_goblins", "fx_7_echoes", "fx_8_sci_fi",
	"sitar", "banjo", "shamisen", "koto",
	"kalimba", "bagpipe", "fiddle", "shanai",
	"tinkle_bell", "agogo", "steel_drums", "woodblock",
	"taiko_drum", "melodic_tom", "synth_drum", "reverse_cymbal",
	"guitar_fret_noise", "breath_noise", "seashore", "bird_tweet",
	"telephone_ring", "helicopter", "applause", "gunshot",
}

var gmProgramNumbers = func() map[string]uint8 {
	m := make(map[string]uint8, len(gmPrograms))
	for i, name := range gmPrograms {
		m[name] = uint8(i)
	}
	return m
}()

// VoiceToProgram resolves a voice name list to the first name recognized
// as a General MIDI instrument, falling back to program 0 (acoustic grand
// piano) if none match.
func VoiceToProgram(voices []string) uint8 {
	for _, v := range voices {
		if p, ok := gmProgramNumbers[v]; ok {
			return p
		}
	}
	return 0
}

// ProgramToVoice returns the single-element voice list naming program p's
// General MIDI instrument.
func ProgramToVoice(p uint8) []string {
	if int(p) < len(gmPrograms) {
		return []string{gmPrograms[p]}
	}
	return []string{"unknown"}
}
