package parser

import (
	"strings"

	"github.com/gomtxt/mtxt"
)

// Parse runs the full two-pass Record Parser (§4.C) over MTXT source text:
// a per-line lexical/grammar pass producing raw records, tolerant of
// per-line failures so that diagnostics accumulate across the whole file,
// followed by the stateful Finalize semantic pass. The returned Store is
// already sorted (§4.C composite key). Callers should check
// diags.HasErrors() before trusting version/store.
func Parse(text string) (mtxt.Version, *mtxt.Store, *mtxt.Diagnostics) {
	diags := &mtxt.Diagnostics{}
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")

	raws := make([]rawRecord, 0, len(lines))
	for i, line := range lines {
		lineNo := i + 1
		rec, err := parseLine(lineNo, line)
		if err != nil {
			diags.Add(err)
			continue
		}
		raws = append(raws, rec)
	}

	version, store, fdiags := Finalize(raws)
	diags.Errors = append(diags.Errors, fdiags.Errors...)
	diags.Warnings = append(diags.Warnings, fdiags.Warnings...)
	return version, store, diags
}
