package main

import (
	"fmt"
	"io"
	"os"
)

// Set at build time with -ldflags "-X main.version=...".
var (
	version = "dev"
	commit  = "none"
)

func main() {
	os.Exit(execute(os.Args, os.Stderr))
}

// execute runs the CLI and returns the process exit code. Errors go to stderr.
func execute(args []string, stderr io.Writer) int {
	if err := newApp().Run(args); err != nil {
		fmt.Fprintln(stderr, "fatal:", err)
		return 1
	}
	return 0
}
