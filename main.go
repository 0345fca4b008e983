package main

import (
	"os"

	"github.com/MikeCob/noc-job-matcher/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
