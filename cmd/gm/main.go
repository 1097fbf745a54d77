package main

import (
	"os"

	"github.com/bnema/gasmorph/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
