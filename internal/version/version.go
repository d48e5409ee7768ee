// Package version exposes the dispatcher build metadata reported by
// the /version endpoint and the startup log line.
package version

// Version is the dispatcher release, stamped at build time via ldflags.
var Version = "0.0.0"

// GitCommit is the git commit hash, stamped at build time via ldflags.
var GitCommit = "unknown"

// BuildDate is the build date, stamped at build time via ldflags.
var BuildDate = "unknown"
