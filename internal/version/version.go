// Package version holds the build-time version string, set via -ldflags
// at release build time; it defaults to "dev" for local builds.
package version

// Version is the ldactl release version. Overridden at build time with
// -ldflags "-X github.com/tarqd/ldactl/internal/version.Version=...".
var Version = "dev"
