// Package workspace owns the recipe directory the pipeline works in.
//
// A Workspace resolves file names relative to the directory, checks that the
// static assets shipped with the recipe are present, and replaces generated
// files (PKGBUILD, .SRCINFO) atomically through go-update so that a failed run
// never leaves a half-written file behind. A run marker stored in the
// directory keeps two runs from working on the same recipe at once.
package workspace
