package main

import (
	"os"

	"fleetd/internal/fleetctl"
)

func main() {
	os.Exit(fleetctl.Run(os.Stdout, os.Stderr))
}
