package main

import (
	"os"

	"github.com/riskbook-dev/riskbook/internal/commands"
)

func main() {
	if err := commands.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
