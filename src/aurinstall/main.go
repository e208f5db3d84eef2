// aurinstall installs Auriga survey software products into a shared
// product root and publishes matching environment-module files.
package main

import (
	"github.com/aurigasurvey/toolkit/src/aurinstall/internal/cmd"
)

func main() {
	cmd.Execute()
}
