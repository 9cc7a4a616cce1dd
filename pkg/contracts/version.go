package contracts

import (
	"runtime"
	"runtime/debug"
)

const (
	// Version is the release of the finsheet binaries
	Version = "0.3.0"

	// EventSchemaVersion tracks the long-event columns shared by the CSV export and stock_data
	EventSchemaVersion = "v1"

	// APIVersion is the prefix of the HTTP routes
	APIVersion = "v1"
)

// Overridden with -ldflags "-X finsheet/pkg/contracts.GitCommit=..."
var (
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// VersionInfo is the payload of GET /api/version
type VersionInfo struct {
	Version      string `json:"version"`
	BuildTime    string `json:"build_time"`
	GitCommit    string `json:"git_commit"`
	GoVersion    string `json:"go_version"`
	OS           string `json:"os"`
	Architecture string `json:"architecture"`
	EventSchema  string `json:"event_schema"`
	APIVersion   string `json:"api_version"`
}

// GetVersionInfo reports the build. Without ldflags the commit and time fall
// back to the VCS stamp the go tool embeds.
func GetVersionInfo() VersionInfo {
	info := VersionInfo{
		Version:      Version,
		BuildTime:    BuildTime,
		GitCommit:    GitCommit,
		GoVersion:    runtime.Version(),
		OS:           runtime.GOOS,
		Architecture: runtime.GOARCH,
		EventSchema:  EventSchemaVersion,
		APIVersion:   APIVersion,
	}

	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, s := range bi.Settings {
			switch {
			case s.Key == "vcs.revision" && info.GitCommit == "unknown":
				info.GitCommit = s.Value
			case s.Key == "vcs.time" && info.BuildTime == "unknown":
				info.BuildTime = s.Value
			}
		}
	}
	return info
}
