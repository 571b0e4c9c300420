package main

import (
	"os"

	"github.com/rustyeddy/igtrader/cmd/igtrader/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
