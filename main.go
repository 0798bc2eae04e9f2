// The main package for the seo-pilot executable.
package main

import (
	"github.com/JakeFAU/seo-pilot/cmd"
)

// main is the entry point of the application.
// It defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}
