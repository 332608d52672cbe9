// Package version reports how the resumatch binary was built.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Set with -ldflags "-X github.com/Aman-CERP/resumatch/pkg/version.Version=1.2.0".
// Commit and Date fall back to the VCS stamp Go embeds in module builds.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// Modified is true when the binary was built from a dirty work tree.
var Modified bool

// BuildInfo is the JSON form of 'resumatch version --json'.
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	Modified  bool   `json:"modified,omitempty"`
	GoVersion string `json:"go_version"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

func init() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	applyVCS(info.Settings)
}

// applyVCS fills Commit, Date and Modified from vcs.* build settings when
// ldflags left them unset.
func applyVCS(settings []debug.BuildSetting) {
	for _, s := range settings {
		switch s.Key {
		case "vcs.revision":
			if Commit == "unknown" && s.Value != "" {
				Commit = shortRevision(s.Value)
			}
		case "vcs.time":
			if Date == "unknown" && s.Value != "" {
				Date = s.Value
			}
		case "vcs.modified":
			Modified = s.Value == "true"
		}
	}
}

func shortRevision(rev string) string {
	if len(rev) > 12 {
		return rev[:12]
	}
	return rev
}

// String is the one-line form printed by 'resumatch version'.
func String() string {
	commit := Commit
	if Modified {
		commit += "-dirty"
	}
	return fmt.Sprintf("resumatch %s (commit: %s, built: %s, %s %s/%s)",
		Version, commit, Date, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

// Short returns the bare version.
func Short() string {
	return Version
}

// GetInfo returns the build details.
func GetInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		Date:      Date,
		Modified:  Modified,
		GoVersion: runtime.Version(),
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}
