// The main package for the crawlplan executable.
package main

import (
	"github.com/smartcrawler/crawlplan/cmd"
)

// main is the entry point of the application.
// It defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}
