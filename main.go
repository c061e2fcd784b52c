package main

import (
	"os"

	"github.com/michaelayoade/dotmac-ftth-ops-sub005/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
