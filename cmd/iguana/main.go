package main

import (
	"os"

	"github.com/msto63/iguana/cmd/iguana/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
