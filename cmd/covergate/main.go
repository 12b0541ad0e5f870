// Package main provides the entry point for the covergate CLI tool.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/Sumatoshi-tech/covergate/cmd/covergate/commands"
)

const exitGateFailed = 2

func main() {
	err := commands.NewRootCommand().Execute()
	if err == nil {
		return
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)

	if errors.Is(err, commands.ErrQualityGateFailed) {
		os.Exit(exitGateFailed)
	}

	os.Exit(1)
}
