package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danmuck/wspackets/internal/client"
	"github.com/danmuck/wspackets/internal/logging"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
)

var (
	profileFlag = &cli.StringFlag{Name: "profile", Aliases: []string{"p"}, Usage: "client profile TOML"}
	urlFlag     = &cli.StringFlag{Name: "url", Aliases: []string{"u"}, Usage: "websocket endpoint (overrides profile)"}
	fromFlag    = &cli.StringFlag{Name: "from", Usage: "display name (overrides profile)"}
)

var app = &cli.App{
	Name:  "wspacketsctl",
	Usage: "chat client for wspacketsd",
	Flags: []cli.Flag{profileFlag, urlFlag, fromFlag},
	Commands: []*cli.Command{
		sendCmd,
		pingCmd,
		listenCmd,
	},
}

func main() {
	logging.ConfigureRuntime()
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "wspacketsctl: %v\n", err)
		os.Exit(1)
	}
}

func resolveProfile(c *cli.Context) (profile, error) {
	p, err := loadProfile(c.String(profileFlag.Name))
	if err != nil {
		return profile{}, err
	}
	if c.IsSet(urlFlag.Name) {
		p.URL = c.String(urlFlag.Name)
	}
	if c.IsSet(fromFlag.Name) {
		p.From = c.String(fromFlag.Name)
	}
	return p, nil
}

// withClient dials per the resolved profile and runs fn while the read loop is
// active. The connection is closed when fn returns.
func withClient(c *cli.Context, fn func(ctx context.Context, cl *client.Client, p profile) error) error {
	p, err := resolveProfile(c)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dialCtx, cancel := context.WithTimeout(ctx, p.Timeout)
	cl, err := client.Dial(dialCtx, p.clientConfig(), c.App.Writer)
	cancel()
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(cl.Run)
	g.Go(func() error {
		defer cl.Close()
		return fn(ctx, cl, p)
	})
	return g.Wait()
}

var sendCmd = &cli.Command{
	Name:  "send",
	Usage: "join and send one chat message",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "text", Aliases: []string{"t"}, Required: true, Usage: "message text"},
	},
	Action: func(c *cli.Context) error {
		return withClient(c, func(_ context.Context, cl *client.Client, p profile) error {
			if err := cl.Join(p.From); err != nil {
				return err
			}
			return cl.Say(p.From, c.String("text"))
		})
	},
}

var pingCmd = &cli.Command{
	Name:  "ping",
	Usage: "measure round trips to the server",
	Flags: []cli.Flag{
		&cli.IntFlag{Name: "count", Aliases: []string{"n"}, Value: 3},
		&cli.DurationFlag{Name: "interval", Value: time.Second},
	},
	Action: func(c *cli.Context) error {
		return withClient(c, func(ctx context.Context, cl *client.Client, p profile) error {
			count := c.Int("count")
			for i := 1; i <= count; i++ {
				pingCtx, cancel := context.WithTimeout(ctx, p.Timeout)
				rtt, err := cl.Ping(pingCtx, int64(i))
				cancel()
				if err != nil {
					return err
				}
				fmt.Fprintf(c.App.Writer, "pong %d from %s: %s\n", i, p.URL, rtt.Round(time.Microsecond))
				if i == count {
					break
				}
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(c.Duration("interval")):
				}
			}
			return nil
		})
	},
}

var listenCmd = &cli.Command{
	Name:  "listen",
	Usage: "join and print chat traffic until interrupted",
	Action: func(c *cli.Context) error {
		return withClient(c, func(ctx context.Context, cl *client.Client, p profile) error {
			if err := cl.Join(p.From); err != nil {
				return err
			}
			select {
			case <-ctx.Done():
			case <-cl.Done():
			}
			return nil
		})
	},
}
