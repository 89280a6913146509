// Package srcinfo regenerates .SRCINFO by running makepkg --printsrcinfo in
// the workspace and storing its standard output verbatim.
package srcinfo
