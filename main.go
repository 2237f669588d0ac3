package main

import (
	"os"

	"machine-bootstrap/cmd" // CLI commands and execution logic
)

// main is the program entry point.
// It delegates to cmd.Execute, which parses the command line, links the
// dotfiles and installs the tool set for the detected platform.
//
// Every step is idempotent, so the tool can be re-run after a failure or to
// pick up changes in the dotfiles checkout. Any unrecovered error exits with
// a non-zero status.
func main() {
	os.Exit(cmd.Execute())
}
