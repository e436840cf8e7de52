package main

import (
	"os"

	"sastrust/cmd/sastrust/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
