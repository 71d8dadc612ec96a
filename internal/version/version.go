// Package version provides build-time version information.
package version

import "fmt"

// Overridden at link time, e.g.
//
//	go build -ldflags "-X bitrevert/internal/version.GitCommit=$(git rev-parse --short HEAD)"
var (
	Version   = "0.3.0"
	BuildTime = "unknown" // UTC, RFC 3339
	GitCommit = "unknown"
)

// String formats the version for display.
func String() string {
	return fmt.Sprintf("bitrevert %s (commit %s, built %s)", Version, GitCommit, BuildTime)
}
