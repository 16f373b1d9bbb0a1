// Package version reports build metadata injected with -ldflags -X.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// String formats the build metadata. Without an injected commit, the VCS
// revision recorded by the go toolchain is used when available.
func String() string {
	commit, date := Commit, Date
	if commit == "none" {
		if rev, at, ok := vcsInfo(); ok {
			commit, date = rev, at
		}
	}
	return fmt.Sprintf("glassbridge %s (commit=%s, date=%s, go=%s)", Version, commit, date, runtime.Version())
}

func vcsInfo() (revision string, at string, ok bool) {
	info, found := debug.ReadBuildInfo()
	if !found {
		return "", "", false
	}
	at = Date
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			revision = setting.Value
		case "vcs.time":
			at = setting.Value
		}
	}
	if len(revision) > 12 {
		revision = revision[:12]
	}
	return revision, at, revision != ""
}
