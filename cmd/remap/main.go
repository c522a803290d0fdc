package main

import (
	"os"

	"github.com/transformkit/remap/cmd/remap/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
