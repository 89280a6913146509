// Package packager refreshes the lmstudio-bin recipe.
//
// Run resolves the newest LM Studio AppImage, extracts its version, downloads
// it into the workspace, hashes it together with the static icon, renders
// PKGBUILD from its template and regenerates .SRCINFO with makepkg. The
// stages run once each, in order, and the first failure ends the run.
package packager
