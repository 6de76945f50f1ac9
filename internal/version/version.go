// Package version holds the build version, overridden at link time with
// -ldflags "-X hrunner/internal/version.Version=...".
package version

var Version = "0.3.0"
