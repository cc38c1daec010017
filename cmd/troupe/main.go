// Command troupe runs a troupe application or one of its small tools.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"
)

func main() {
	cmd := &cli.Command{
		Name:  "troupe",
		Usage: "actor runtime with TCP I/O actors",
		Commands: []*cli.Command{
			runCommand(),
			pingPongCommand(),
			pathCommand(),
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "troupe:", err)
		os.Exit(1)
	}
}
