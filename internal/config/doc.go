// Package config defines the settings of a maintenance run and provides
// helpers to load, validate and save them in YAML format.
//
// Config replaces hard-coded paths and URLs: the workspace directory, the
// "latest" entry URL, the recipe file names and the makepkg command are all
// read from a settings file and may be overridden from the command line.
package config
