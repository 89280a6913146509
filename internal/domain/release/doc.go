// Package release contains the domain types of an upstream LM Studio release.
//
// A Release is derived from the final download URL: its filename carries the
// semantic version, which is extracted once and never changes afterwards.
// Checksums holds the digests that end up in the PKGBUILD sha256sums array.
// The package also defines the error taxonomy shared by every stage.
package release
