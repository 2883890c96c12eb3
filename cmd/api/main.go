package main

import (
	"os"

	"github.com/24f2002329/caniedit/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
