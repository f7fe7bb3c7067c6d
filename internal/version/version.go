// Package version holds the aide build version.
package version

// Version is the aide version, overridable at build time with
// -ldflags "-X github.com/XC0R/aide/internal/version.Version=...".
var Version = "0.3.0-dev"
