// Command semgate translates agent intents into framework concepts and
// validates agent configurations against the six validation gates.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
)

func main() {
	if err := Execute(context.Background(), os.Args[1:]); err != nil {
		if !errors.Is(err, errValidationFailed) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(exitCode(err))
	}
}
