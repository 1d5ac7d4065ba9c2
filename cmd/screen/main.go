// Package main is the entry point for the screen CLI.
package main

import (
	"errors"
	"os"

	"github.com/garyjia/expense-screening/cmd/screen/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		if errors.Is(err, cmd.ErrFlagged) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
