// Command taskq is the operator CLI and daemon for the persistent task
// orchestrator.
package main

import (
	"errors"
	"fmt"
	"os"
)

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		code := 1
		var ec *exitCodeError
		if errors.As(err, &ec) {
			code = ec.code
			if ec.quiet {
				os.Exit(code)
			}
		}
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(code)
	}
}
