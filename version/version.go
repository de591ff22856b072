// Package version exposes the mtxt CLI's build identity for --version.
package version

import (
	"fmt"
	"runtime/debug"
)

// Version is set at build time using something like:
// go build -ldflags "-X github.com/gomtxt/mtxt/version.Version=$(git describe --dirty)"
var Version string

// FormatSpec is the mtxt file format version this build reads and writes,
// independent of the binary's own release version.
const FormatSpec = "1.0"

var commitHash = func() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	var revision string
	modified := false
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			revision = setting.Value
		case "vcs.modified":
			modified = setting.Value == "true"
		}
	}
	if revision == "" {
		return ""
	}
	if len(revision) > 7 {
		revision = revision[:7]
	}
	if modified {
		return revision + "-dirty"
	}
	return revision
}()

// String renders the full --version banner: a release tag when the
// binary was built with one, else the VCS commit hash, always annotated
// with the MTXT format spec version this build implements.
func String() string {
	v := Version
	if v == "" {
		v = commitHash
	}
	if v == "" {
		v = "dev"
	}
	return fmt.Sprintf("mtxt %s (format %s)", v, FormatSpec)
}
