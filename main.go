package main

import (
	"os"

	"github.com/Shoowa/cotejo/cli"
)

func main() {
	os.Exit(cli.Execute())
}
