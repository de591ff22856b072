// Command mtxt converts between MTXT text files and Standard MIDI Files,
// optionally applying one or more Store transforms along the way (§6).
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/gomtxt/mtxt"
	"github.com/gomtxt/mtxt/config"
	"github.com/gomtxt/mtxt/midimtxt"
	"github.com/gomtxt/mtxt/parser"
	"github.com/gomtxt/mtxt/serialize"
	"github.com/gomtxt/mtxt/transform"
	"github.com/gomtxt/mtxt/version"
)

// Exit codes follow spec.md §6: 0 success, 1 parse error, 2 I/O error,
// 3 conversion error, 64 command-line usage error.
const (
	exitOK              = 0
	exitParseError      = 1
	exitIOError         = 2
	exitConversionError = 3
	exitUsage           = 64
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("mtxt", flag.ContinueOnError)
	fs.Usage = func() { printUsage(fs) }

	transpose := fs.Int("transpose", 0, "transpose every note by N semitones")
	quantize := fs.Uint("q", 0, "quantize every event time to 1/N of a beat (alias: -quantize)")
	quantizeLong := fs.Uint("quantize", 0, "quantize every event time to 1/N of a beat")
	offset := fs.Float64("offset", 0, "shift every event time by N beats")
	swing := fs.Float64("swing", 0, "swing amount in [-1,1] applied at the -q grid")
	humanize := fs.Float64("humanize", 0, "maximum random timing jitter, in beats")
	include := fs.String("include", "", "splice in another file as path@offsetBeats")
	includeChannels := fs.String("include-channels", "", "comma-separated channel list to keep")
	excludeChannels := fs.String("exclude-channels", "", "comma-separated channel list to drop")
	applyDirectives := fs.Bool("apply-directives", false, "materialize every positional default inline on output")
	extractDirectives := fs.Bool("extract-directives", false, "emit majority inline values as leading directives on output")
	mergeNotes := fs.Bool("merge-notes", false, "merge MIDI note on/off pairs into note records on import")
	groupChannels := fs.Bool("group-channels", false, "reorder output into per-channel blocks")
	sortOut := fs.Bool("sort", false, "lexicographically sort output lines after rendering")
	indent := fs.Int("indent", 0, "pad the first token of every record to N display columns")
	configPath := fs.String("config", "", "path to a YAML config file of CLI defaults")
	verbose := fs.Bool("v", false, "print diagnostics and warnings to stderr")
	showVersion := fs.Bool("version", false, "print version and exit")

	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if *showVersion {
		fmt.Println(version.String())
		return exitOK
	}
	if fs.NArg() != 2 {
		fs.Usage()
		return exitUsage
	}

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return exitIOError
		}
	}

	inPath, outPath := fs.Arg(0), fs.Arg(1)

	v, store, diags, err := load(inPath, mergeNoteOpt(*mergeNotes, cfg.PitchBendRange))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitIOError
	}
	if *verbose {
		printDiagnostics(diags)
	}
	if diags.HasErrors() {
		return inputErrorExitCode(inPath)
	}

	store, transformDiags, err := applyTransforms(store, transformArgs{
		transpose:       *transpose,
		quantizeGrid:    chooseGrid(*quantize, *quantizeLong),
		swing:           *swing,
		offset:          *offset,
		humanize:        *humanize,
		include:         *include,
		includeChannels: *includeChannels,
		excludeChannels: *excludeChannels,
		groupChannels:   *groupChannels,
		loadInclude:     load,
	})
	if *verbose && transformDiags != nil {
		printDiagnostics(transformDiags)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitConversionError
	}

	if err := save(outPath, v, store, saveOptions{
		applyDirectives:   *applyDirectives,
		extractDirectives: *extractDirectives,
		indent:            *indent,
		sortOut:           *sortOut,
		ppq:               uint16(cfg.TicksPerQuarter),
		bendRange:         cfg.PitchBendRange,
	}); err != nil {
		fmt.Fprintln(os.Stderr, err)
		var convErr *mtxt.ConversionError
		if errors.As(err, &convErr) {
			return exitConversionError
		}
		return exitIOError
	}
	return exitOK
}

// inputErrorExitCode chooses the diagnostics exit code by the input file's
// kind: MTXT text failures are parse errors (1), SMF failures are
// conversion errors (3), per spec.md §6.
func inputErrorExitCode(path string) int {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mid", ".midi":
		return exitConversionError
	default:
		return exitParseError
	}
}

func mergeNoteOpt(merge bool, bendRange float64) midimtxt.DecodeOptions {
	return midimtxt.DecodeOptions{MergeNotes: merge, PitchBendRangeSemitones: bendRange}
}

func chooseGrid(short, long uint) uint32 {
	if long != 0 {
		return uint32(long)
	}
	return uint32(short)
}

func load(path string, decodeOpts midimtxt.DecodeOptions) (mtxt.Version, *mtxt.Store, *mtxt.Diagnostics, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".mtxt", ".txt":
		data, err := os.ReadFile(path)
		if err != nil {
			return mtxt.Version{}, nil, nil, err
		}
		v, store, diags := parser.Parse(string(data))
		return v, store, diags, nil
	case ".mid", ".midi":
		f, err := smf.ReadFile(path)
		if err != nil {
			return mtxt.Version{}, nil, nil, err
		}
		v, store, diags := midimtxt.Decode(f, decodeOpts)
		return v, store, diags, nil
	default:
		return mtxt.Version{}, nil, nil, fmt.Errorf("mtxt: unrecognized file extension %q", ext)
	}
}

type transformArgs struct {
	transpose         int
	quantizeGrid      uint32
	swing             float64
	offset            float64
	humanize          float64
	include           string
	includeChannels   string
	excludeChannels   string
	groupChannels     bool
	loadInclude       func(string, midimtxt.DecodeOptions) (mtxt.Version, *mtxt.Store, *mtxt.Diagnostics, error)
}

func applyTransforms(store *mtxt.Store, a transformArgs) (*mtxt.Store, *mtxt.Diagnostics, error) {
	diags := &mtxt.Diagnostics{}
	if a.transpose != 0 {
		var td *mtxt.Diagnostics
		store, td = transform.Transpose(store, a.transpose)
		diags.Warnings = append(diags.Warnings, td.Warnings...)
	}
	if a.quantizeGrid != 0 || a.swing != 0 {
		store = transform.Quantize(store, a.quantizeGrid, a.swing, 0, 0)
	}
	if a.offset != 0 {
		var od *mtxt.Diagnostics
		store, od = transform.Offset(store, a.offset)
		diags.Warnings = append(diags.Warnings, od.Warnings...)
	}
	if a.humanize != 0 {
		store = transform.Humanize(store, time.Now().UnixNano(), a.humanize)
	}
	if a.include != "" {
		path, offsetBeats, err := parseIncludeArg(a.include)
		if err != nil {
			return nil, diags, err
		}
		_, included, includeDiags, err := a.loadInclude(path, midimtxt.DecodeOptions{})
		if err != nil {
			return nil, diags, err
		}
		if includeDiags.HasErrors() {
			return nil, diags, includeDiags
		}
		store = transform.Include(store, included, offsetBeats)
	}
	if a.includeChannels != "" {
		store = transform.IncludeChannels(store, parseChannelList(a.includeChannels))
	}
	if a.excludeChannels != "" {
		store = transform.ExcludeChannels(store, parseChannelList(a.excludeChannels))
	}
	if a.groupChannels {
		store = transform.GroupByChannel(store)
	}
	return store, diags, nil
}

func parseIncludeArg(s string) (path string, offset float64, err error) {
	idx := strings.LastIndexByte(s, '@')
	if idx < 0 {
		return s, 0, nil
	}
	path = s[:idx]
	offset, err = strconv.ParseFloat(s[idx+1:], 64)
	if err != nil {
		return "", 0, fmt.Errorf("mtxt: invalid --include offset in %q", s)
	}
	return path, offset, nil
}

func parseChannelList(s string) []int {
	var out []int
	for _, tok := range strings.Split(s, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		if n, err := strconv.Atoi(tok); err == nil {
			out = append(out, n)
		}
	}
	return out
}

type saveOptions struct {
	applyDirectives   bool
	extractDirectives bool
	indent            int
	sortOut           bool
	ppq               uint16
	bendRange         float64
}

func save(path string, v mtxt.Version, store *mtxt.Store, opts saveOptions) error {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".mtxt", ".txt":
		text := serialize.Serialize(v, store, serialize.Options{
			ExtractDirectives: opts.extractDirectives,
			ApplyDirectives:   opts.applyDirectives,
			Indent:            opts.indent,
		})
		if opts.sortOut {
			text = serialize.SortLines(text)
		}
		return os.WriteFile(path, []byte(text), 0644)
	case ".mid", ".midi":
		smfFile, err := midimtxt.Encode(v, store, midimtxt.EncodeOptions{TicksPerQuarter: opts.ppq, PitchBendRangeSemitones: opts.bendRange})
		if err != nil {
			return err
		}
		return smfFile.WriteFile(path)
	default:
		return fmt.Errorf("mtxt: unrecognized file extension %q", ext)
	}
}

func printDiagnostics(diags *mtxt.Diagnostics) {
	for _, w := range diags.Warnings {
		fmt.Fprintln(os.Stderr, "warning:", w)
	}
	for _, e := range diags.Errors {
		fmt.Fprintln(os.Stderr, "error:", e)
	}
}

func printUsage(fs *flag.FlagSet) {
	fmt.Fprintf(os.Stderr, "mtxt: convert between MTXT text and Standard MIDI Files.\nUsage: %s [flags] <input> <output>\n", os.Args[0])
	fs.PrintDefaults()
}
