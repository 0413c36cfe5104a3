package main

import (
	"fmt"
	"os"

	"github.com/covmap/covmap/cmd/covmap/app"
)

func main() {
	if err := app.NewCovmapCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
