// Package version exposes build metadata for lmstudio-pkgbuild.
//
// Version, Commit and BuildTime are injected at build time via Go ldflags and
// default to values suitable for local builds. The same metadata identifies
// the tool to the upstream download server through UserAgent.
package version
