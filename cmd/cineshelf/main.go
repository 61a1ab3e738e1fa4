// Package main provides the entry point for the cineshelf command line client.
package main

import (
	"context"
	"os"

	"github.com/charmbracelet/fang"

	"github.com/cineshelfapp/cineshelf/internal/cli"
)

var version = "2.1.0"

func main() {
	root := cli.NewRootCmd()

	if err := fang.Execute(
		context.Background(),
		root,
		fang.WithVersion(version),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		os.Exit(1)
	}
}
