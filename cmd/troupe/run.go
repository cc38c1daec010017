package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/najoast/troupe/bootstrap"
	"github.com/najoast/troupe/core"
	"github.com/najoast/troupe/network"
)

func runCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "start the application and serve until interrupted",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "configuration file; searched for when empty",
			},
			&cli.BoolFlag{
				Name:  "echo",
				Usage: "answer every TCP frame with the same bytes",
				Value: true,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			var opts []bootstrap.Option
			if file := cmd.String("config"); file != "" {
				opts = append(opts, bootstrap.WithConfigFile(file))
			}
			if cmd.Bool("echo") {
				opts = append(opts, bootstrap.WithTCPHandler(spawnEcho))
			}

			app, err := bootstrap.New(opts...)
			if err != nil {
				return err
			}
			app.Logger().Info("starting", "version", app.Config().App.Version)
			return app.Run(ctx)
		},
	}
}

func spawnEcho(sys *core.System) (core.Ref, error) {
	return sys.ActorOf("echo", core.ActorFunc(echo))
}

// echo writes every received frame back to its connection.
func echo(ctx *core.Context, msg any) error {
	switch m := msg.(type) {
	case network.Connected:
		ctx.Log().Info("connection opened", "remote", m.Remote.String(), "conn", m.Conn.String())
	case network.Received:
		ctx.Tell(m.Conn, network.Write{Data: m.Data})
	case network.Closed:
		if m.Err != nil {
			ctx.Log().Warn("connection failed", "conn", m.Conn.String(), "error", m.Err)
		} else {
			ctx.Log().Debug("connection closed", "conn", m.Conn.String())
		}
	case network.Unbound:
		ctx.Log().Info("listener closed", "listener", m.Listener.String())
	}
	return nil
}
