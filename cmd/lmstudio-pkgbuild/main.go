package main

import "github.com/oshokin/lmstudio-pkgbuild/cmd/lmstudio-pkgbuild/cmd"

func main() {
	cmd.Execute()
}
