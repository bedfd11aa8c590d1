// Command schemasql compiles JSON Schema documents into relational tables
// and serves CRUD over them.
package main

import (
	"errors"
	"fmt"
	"os"
)

// Exit codes.
const (
	exitSuccess    = 0
	exitFailure    = 1
	exitPartialRun = 2
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "schemasql:", err)
		var partial partialError
		if errors.As(err, &partial) {
			os.Exit(exitPartialRun)
		}
		os.Exit(exitFailure)
	}
	os.Exit(exitSuccess)
}

// partialError reports a run in which some schema files failed.
type partialError struct{ error }

func (e partialError) Unwrap() error { return e.error }
