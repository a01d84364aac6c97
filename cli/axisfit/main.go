// Package main is the axisfit command itself.
package main

import (
	"log"
	"os"

	"github.com/ulyxes/axisfit/cli"
)

func main() {
	app := cli.NewApp(os.Stdout, os.Stderr)
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
