// SPDX-License-Identifier: MIT
//
// Package build carries version metadata embedded at compile time via
// -ldflags, e.g.:
//
//	go build -ldflags "-X fdaudio/internal/build.name=fdaudio -X fdaudio/internal/build.version=0.1.0"
package build

// ldFlags holds the build-time metadata the CLI prints for --version and
// the pipeline logs at startup.
type ldFlags struct {
	Name        string
	Description string
	Time        string
	Commit      string
	Version     string
}

// Package-level variables populated by -ldflags. Unset fields fall back
// to development defaults rather than failing startup, since most local
// builds don't pass ldflags at all.
var (
	name        string
	description string
	buildTime   string
	commit      string
	version     string

	buildFlags = &ldFlags{
		Name:        "fdaudio",
		Description: "full-duplex low-latency audio pipeline",
		Time:        "unknown",
		Commit:      "unknown",
		Version:     "dev",
	}
)

// Initialize copies any ldflags-supplied values into buildFlags, leaving
// the development defaults in place for anything not supplied.
func Initialize() error {
	if name != "" {
		buildFlags.Name = name
	}
	if description != "" {
		buildFlags.Description = description
	}
	if buildTime != "" {
		buildFlags.Time = buildTime
	}
	if commit != "" {
		buildFlags.Commit = commit
	}
	if version != "" {
		buildFlags.Version = version
	}
	return nil
}

// GetBuildFlags returns the current build information. Safe to call
// whether or not Initialize has been called; it will simply report
// development defaults.
func GetBuildFlags() *ldFlags {
	return buildFlags
}
