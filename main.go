// The main package for the leadscout executable.
package main

import (
	"github.com/leadscout/leadscout/cmd"
)

// main is the entry point of the application.
// It defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}
