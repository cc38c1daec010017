package main

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/najoast/troupe/core"
	"github.com/najoast/troupe/dispatch"
)

type ball struct{ hits int }

type serve struct {
	pong   core.Ref
	rounds int
}

type rally struct {
	rounds  int
	elapsed time.Duration
}

func pingPongCommand() *cli.Command {
	return &cli.Command{
		Name:  "pingpong",
		Usage: "bounce a message between two actors and report the rate",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "rounds", Aliases: []string{"n"}, Value: 100000, Usage: "round trips to run"},
			&cli.StringFlag{Name: "executor", Value: "default", Usage: "execution context kind: default or pinned"},
			&cli.DurationFlag{Name: "timeout", Value: time.Minute, Usage: "give up after this long"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			r, err := pingPong(ctx, int(cmd.Int("rounds")), cmd.String("executor"), cmd.Duration("timeout"))
			if err != nil {
				return err
			}
			rate := float64(r.rounds) / r.elapsed.Seconds()
			fmt.Fprintf(cmd.Root().Writer, "%d round trips in %s (%.0f/s)\n", r.rounds, r.elapsed, rate)
			return nil
		},
	}
}

// pingPong runs the rally on a fresh system and blocks until it finishes.
func pingPong(ctx context.Context, rounds int, executor string, timeout time.Duration) (rally, error) {
	if rounds <= 0 {
		return rally{}, fmt.Errorf("rounds must be positive, got %d", rounds)
	}

	var spawn []core.SpawnOption
	var opts []core.Option
	switch executor {
	case "", "default":
	case string(dispatch.KindPinned):
		opts = append(opts, core.WithExecutors(dispatch.Spec{Name: "pinned", Kind: dispatch.KindPinned, Throughput: 100}))
		spawn = append(spawn, core.WithExecutor("pinned"))
	default:
		return rally{}, fmt.Errorf("unknown executor %q", executor)
	}

	sys, err := core.NewSystem("pingpong", opts...)
	if err != nil {
		return rally{}, err
	}
	defer sys.Shutdown(ctx)

	pong, err := sys.ActorOf("pong", core.ActorFunc(func(c *core.Context, msg any) error {
		if b, ok := msg.(ball); ok {
			c.Reply(ball{hits: b.hits + 1})
		}
		return nil
	}), spawn...)
	if err != nil {
		return rally{}, err
	}

	var (
		started time.Time
		owner   core.Ref
		goal    int
	)
	ping, err := sys.ActorOf("ping", core.ActorFunc(func(c *core.Context, msg any) error {
		switch m := msg.(type) {
		case serve:
			owner, goal, started = c.Sender(), m.rounds, time.Now()
			c.Tell(m.pong, ball{})
		case ball:
			if m.hits >= goal {
				c.Tell(owner, rally{rounds: m.hits, elapsed: time.Since(started)})
				return nil
			}
			c.Reply(m)
		}
		return nil
	}), spawn...)
	if err != nil {
		return rally{}, err
	}

	in, err := sys.NewInbox()
	if err != nil {
		return rally{}, err
	}
	defer in.Close()

	in.Send(ping, serve{pong: pong, rounds: rounds})
	got := in.Receive(timeout)
	if !got.Valid {
		return rally{}, fmt.Errorf("no result after %s", timeout)
	}
	result, ok := got.Val.Message.(rally)
	if !ok {
		return rally{}, fmt.Errorf("unexpected reply %s", core.TypeName(got.Val.Message))
	}
	return result, nil
}
