package main

import (
	"fmt"
	"os"

	"github.com/specksdev/specks/internal/cmd"
	"github.com/specksdev/specks/internal/errors"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(errors.KindOf(err).ExitCode())
	}
}
