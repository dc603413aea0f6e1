package main

import (
	"os"

	"github.com/danielhan-dev/strikescan/cmd/strikescan/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
