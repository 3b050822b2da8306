package main

import (
	"os"

	"github.com/sofmeright/ue4-docker/src/cli/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
