package api

import "github.com/MJE43/lattice-walk-go/internal/sampling"

// Version information - these will be set at build time via ldflags
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// GetVersionInfo returns the current version information.
func GetVersionInfo() VersionInfo {
	return VersionInfo{
		Version:       Version,
		EngineVersion: sampling.EngineVersion,
		GitCommit:     GitCommit,
		BuildTime:     BuildTime,
	}
}
