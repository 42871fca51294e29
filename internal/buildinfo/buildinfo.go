// Package buildinfo carries the version stamped in by the linker:
//
//	go build -ldflags "-X loom/internal/buildinfo.Version=v0.3.0 -X loom/internal/buildinfo.Commit=$(git rev-parse --short HEAD)"
package buildinfo

import "strings"

var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// Short returns a compact build identifier for banners and window titles.
func Short() string {
	if Version != "" && Version != "dev" {
		return Version
	}
	if Commit != "" && Commit != "unknown" {
		return Commit
	}
	return "dev"
}

// Long returns every known build field, for --version.
func Long() string {
	parts := []string{Version}
	if Commit != "" && Commit != "unknown" {
		parts = append(parts, Commit)
	}
	if Date != "" && Date != "unknown" {
		parts = append(parts, Date)
	}
	return strings.Join(parts, " ")
}
