package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/najoast/troupe/address"
)

func pathCommand() *cli.Command {
	return &cli.Command{
		Name:      "path",
		Usage:     "parse an actor address and print its parts",
		ArgsUsage: "<address>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() != 1 {
				return fmt.Errorf("expected one address, got %d", cmd.Args().Len())
			}
			addr, err := address.Parse(cmd.Args().First())
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.Root().Writer, describe(addr))
			return nil
		},
	}
}

func describe(addr address.Address) string {
	var b strings.Builder
	fmt.Fprintf(&b, "address:  %s\n", addr)
	if addr.IsAbsolute() {
		fmt.Fprintf(&b, "system:   %s\n", addr.System())
		fmt.Fprintf(&b, "scope:    %s\n", addr.Scope())
	} else {
		b.WriteString("relative: true\n")
	}
	fmt.Fprintf(&b, "segments: %s\n", strings.Join(addr.Segments(), " "))
	fmt.Fprintf(&b, "name:     %s\n", addr.Name())
	return b.String()
}
