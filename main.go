package main

import (
	"os"

	"eks-backup/src/cli"
)

func main() {
	os.Exit(cli.Execute())
}
