// Package manifest renders PKGBUILD from PKGBUILD.template.
//
// Rendering is a literal substitution of four placeholder tokens; every other
// byte of the template is copied unchanged. The package can also read back
// the pkgver recorded in a previously rendered PKGBUILD.
package manifest
