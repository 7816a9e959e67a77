package main

import (
	"os"

	"github.com/usexrp/agentwallet/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
