package version

import (
	"fmt"
	"runtime/debug"
	"time"

	"github.com/Masterminds/semver/v3"
)

var (
	// Set at build time using -ldflags.
	Version   = "dev"
	GitCommit = ""
	BuildTime = ""
)

// Info is the resolved build information.
type Info struct {
	Version   string    `json:"version"`
	GitCommit string    `json:"git_commit,omitempty"`
	GoVersion string    `json:"go_version,omitempty"`
	BuildDate time.Time `json:"build_date,omitzero"`
	Dirty     bool      `json:"dirty"`
	Release   bool      `json:"release"`
}

// Get resolves build information from link-time variables and the
// embedded build info.
func Get() Info {
	return resolve(Version, GitCommit, BuildTime, readBuildInfo())
}

// Short returns "version" or "version-commit[-dirty]".
func Short() string {
	return Get().String()
}

func (i Info) String() string {
	if i.GitCommit == "" {
		return i.Version
	}
	if i.Dirty {
		return fmt.Sprintf("%s-%s-dirty", i.Version, i.GitCommit)
	}
	return fmt.Sprintf("%s-%s", i.Version, i.GitCommit)
}

type buildStamps struct {
	goVersion string
	revision  string
	modified  bool
	time      string
}

func readBuildInfo() buildStamps {
	var s buildStamps
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return s
	}
	s.goVersion = bi.GoVersion
	for _, setting := range bi.Settings {
		switch setting.Key {
		case "vcs.revision":
			s.revision = setting.Value
		case "vcs.modified":
			s.modified = setting.Value == "true"
		case "vcs.time":
			s.time = setting.Value
		}
	}
	return s
}

func resolve(ver, commit, buildTime string, stamps buildStamps) Info {
	info := Info{
		Version:   ver,
		GitCommit: commit,
		GoVersion: stamps.goVersion,
		Dirty:     stamps.modified,
	}
	if info.GitCommit == "" {
		info.GitCommit = stamps.revision
	}
	if len(info.GitCommit) > 7 {
		info.GitCommit = info.GitCommit[:7]
	}
	if buildTime == "" {
		buildTime = stamps.time
	}
	if t, err := time.Parse(time.RFC3339, buildTime); err == nil {
		info.BuildDate = t
	}

	// A release is a stable semantic version built from a clean tree.
	if v, err := semver.NewVersion(ver); err == nil {
		info.Release = v.Prerelease() == "" && !info.Dirty
	}
	return info
}
