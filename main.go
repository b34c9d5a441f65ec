// The main package for the quotecrawler executable.
package main

import (
	"github.com/JakeFAU/quotes-crawler/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
