// Package version holds the build version string reported by the CLI's
// --version flag.
package version

// Current is overridden at build time via -ldflags; "dev" otherwise.
var Current = "dev"
