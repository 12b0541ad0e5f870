// Package version identifies the running covergate binary.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Set through -ldflags "-X github.com/Sumatoshi-tech/covergate/pkg/version.Version=...".
var (
	Version   = "dev"
	GitHash   = "<unknown>"
	BuildDate = ""
)

// Info describes the binary.
type Info struct {
	Version   string `json:"version"`
	GitHash   string `json:"git_hash"`
	BuildDate string `json:"build_date,omitempty"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// Get returns the build information. Without ldflags the VCS revision embedded
// by the Go toolchain is used when available.
func Get() Info {
	info := Info{
		Version:   Version,
		GitHash:   GitHash,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}

	build, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}

	if info.Version == "dev" && build.Main.Version != "" && build.Main.Version != "(devel)" {
		info.Version = build.Main.Version
	}

	for _, setting := range build.Settings {
		switch setting.Key {
		case "vcs.revision":
			if info.GitHash == "<unknown>" {
				info.GitHash = setting.Value
			}
		case "vcs.time":
			if info.BuildDate == "" {
				info.BuildDate = setting.Value
			}
		}
	}

	return info
}

func (i Info) String() string {
	return fmt.Sprintf("covergate %s (%s, %s, %s)", i.Version, i.GitHash, i.GoVersion, i.Platform)
}
