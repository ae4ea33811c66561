package main

import (
	"os"

	"NmapVulners/pkg/cli"
)

func main() {
	os.Exit(cli.Execute())
}
