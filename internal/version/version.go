// Package version reports build metadata for the rapids client and CLI.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
)

const (
	unknownValue     = "unknown"
	commitHashLength = 7
)

// Set by -ldflags at release time.
var (
	Version   = "dev"
	BuildDate = unknownValue
	GitCommit = unknownValue
	GoVersion = runtime.Version()
)

// BuildInfo describes the running binary.
type BuildInfo struct {
	Version   string   `json:"version"`
	BuildDate string   `json:"build_date"`
	GitCommit string   `json:"git_commit"`
	GoVersion string   `json:"go_version"`
	Dirty     bool     `json:"dirty"`
	Module    string   `json:"module"`
	Deps      []string `json:"deps"`
}

// Info collects BuildInfo from the ldflags variables and the embedded
// module information.
func Info() BuildInfo {
	info := BuildInfo{
		Version:   Version,
		BuildDate: BuildDate,
		GitCommit: GitCommit,
		GoVersion: GoVersion,
		Dirty:     strings.HasSuffix(GitCommit, "-dirty"),
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		info.Module = bi.Main.Path
		for _, dep := range bi.Deps {
			info.Deps = append(info.Deps, dep.Path+"@"+dep.Version)
		}
	}
	return info
}

func (b BuildInfo) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "rapids %s", b.Version)
	if b.Dirty {
		sb.WriteString(" (dirty)")
	}
	sb.WriteString("\n")
	if b.GitCommit != unknownValue {
		commit := b.GitCommit
		if len(commit) > commitHashLength {
			commit = commit[:commitHashLength]
		}
		fmt.Fprintf(&sb, "commit: %s\n", commit)
	}
	if b.BuildDate != unknownValue {
		fmt.Fprintf(&sb, "built: %s\n", b.BuildDate)
	}
	fmt.Fprintf(&sb, "go: %s\n", b.GoVersion)
	return sb.String()
}

// UserAgent is sent with every request to the cluster.
func UserAgent() string {
	return fmt.Sprintf("rapids/%s (%s)", Version, runtime.Version())
}

// IsRelease reports whether Version names a tagged release.
func IsRelease() bool {
	return Version != "dev" && !strings.Contains(Version, "-")
}
