// Command minikv-cli talks to a minikv server.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"minikv/resp/client"
)

func newApp() *cli.App {
	return &cli.App{
		Name:  "minikv-cli",
		Usage: "minikv command-line client",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "server",
				Aliases: []string{"s"},
				Usage:   "server address HOST:PORT",
				EnvVars: []string{"MINIKV_SERVER"},
				Value:   "localhost:6379",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "reply timeout",
				Value: 3 * time.Second,
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "get",
				Usage:     "print the value of KEY",
				ArgsUsage: "KEY",
				Action:    getAction,
			},
			{
				Name:      "set",
				Usage:     "store VALUE under KEY",
				ArgsUsage: "KEY VALUE",
				Action:    setAction,
			},
			{
				Name:   "ping",
				Usage:  "check the server is alive",
				Action: pingAction,
			},
			{
				Name:  "bench",
				Usage: "run concurrent SET/GET round trips",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "clients", Value: 10, Usage: "concurrent connections"},
					&cli.IntFlag{Name: "requests", Value: 10000, Usage: "total requests"},
				},
				Action: benchAction,
			},
		},
	}
}

func connect(c *cli.Context) (*client.Client, error) {
	cl, err := client.MakeClient(c.String("server"))
	if err != nil {
		return nil, err
	}
	cl.SetTimeout(c.Duration("timeout"))
	cl.Start()
	return cl, nil
}

func getAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.ShowSubcommandHelp(c)
	}
	cl, err := connect(c)
	if err != nil {
		return err
	}
	defer cl.Close()
	val, ok, err := cl.Get(c.Args().First())
	if err != nil {
		return err
	}
	if !ok {
		_, _ = fmt.Fprintln(c.App.Writer, "(nil)")
		return nil
	}
	_, _ = fmt.Fprintf(c.App.Writer, "%q\n", val)
	return nil
}

func setAction(c *cli.Context) error {
	if c.NArg() != 2 {
		return cli.ShowSubcommandHelp(c)
	}
	cl, err := connect(c)
	if err != nil {
		return err
	}
	defer cl.Close()
	if err := cl.Set(c.Args().Get(0), []byte(c.Args().Get(1))); err != nil {
		return err
	}
	_, _ = fmt.Fprintln(c.App.Writer, "OK")
	return nil
}

func pingAction(c *cli.Context) error {
	cl, err := connect(c)
	if err != nil {
		return err
	}
	defer cl.Close()
	start := time.Now()
	if err := cl.Ping(); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(c.App.Writer, "PONG %v\n", time.Since(start))
	return nil
}

func benchAction(c *cli.Context) error {
	clients := c.Int("clients")
	requests := c.Int("requests")
	if clients <= 0 || requests <= 0 {
		return errors.New("--clients and --requests must be positive")
	}

	ctx := c.Context
	if ctx == nil {
		ctx = context.Background()
	}
	pool := client.NewPool(ctx, c.String("server"), client.PoolConfig{
		MaxTotal: clients,
		MaxIdle:  clients,
		Timeout:  c.Duration("timeout"),
	})
	defer pool.Close(ctx)

	var (
		next   int64 = -1
		failed int64
		wg     sync.WaitGroup
	)
	value := []byte("bench-value")
	start := time.Now()
	for i := 0; i < clients; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				n := atomic.AddInt64(&next, 1)
				if n >= int64(requests) {
					return
				}
				key := "bench:" + strconv.FormatInt(n, 10)
				err := pool.Do(ctx, func(cl *client.Client) error {
					if n%2 == 0 {
						return cl.Set(key, value)
					}
					_, _, err := cl.Get(key)
					return err
				})
				if err != nil {
					atomic.AddInt64(&failed, 1)
					log.WithError(err).Debug("bench request failed")
				}
			}
		}()
	}
	wg.Wait()
	elapsed := time.Since(start)

	_, _ = fmt.Fprintf(c.App.Writer, "%d requests, %d clients, %d failed in %v (%.0f req/s)\n",
		requests, clients, failed, elapsed, float64(requests)/elapsed.Seconds())
	if failed > 0 {
		return fmt.Errorf("%d requests failed", failed)
	}
	return nil
}

func main() {
	log.SetLevel(log.WarnLevel)
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
