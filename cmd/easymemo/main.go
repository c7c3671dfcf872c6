package main

import (
	"os"

	"easymemo/interfaces/cli"
)

func main() {
	os.Exit(cli.Execute())
}
