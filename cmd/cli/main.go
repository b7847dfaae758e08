// Package main is the entry point for the lineage CLI binary.
package main

import (
	"os"

	cli "github.com/nico-mirson-parloa/semantic-layer-service-sub001/pkg/cli"
)

func main() {
	os.Exit(cli.Execute())
}
