// aurperm normalizes ownership and permissions on Auriga install trees so
// the whole collaboration can read what any member installs.
package main

import (
	"github.com/aurigasurvey/toolkit/src/aurperm/internal/cmd"
)

func main() {
	cmd.Execute()
}
