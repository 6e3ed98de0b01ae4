// Package version holds the build version, set with
// -ldflags "-X screenlink/internal/version.Version=...".
package version

var Version = "dev"
