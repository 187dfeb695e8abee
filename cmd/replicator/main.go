package main

import (
	"os"

	"github.com/quantumalpha/replicator/cmd/replicator/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
