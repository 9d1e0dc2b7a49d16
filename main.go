package main

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"minikv/config"
	"minikv/database"
	"minikv/datastruct/dict"
	"minikv/lib/logger"
	"minikv/lib/metrics"
	"minikv/resp/handler"
	"minikv/tcp"
)

// read when present and --config is not given
const defaultConfigFile = "minikv.yaml"

// Version is set via ldflags
var Version = "dev"

func fileExists(filename string) bool {
	info, err := os.Stat(filename)
	return err == nil && !info.IsDir()
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "minikv",
		Usage:   "in-memory key-value server speaking RESP",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "YAML config file",
				EnvVars: []string{"MINIKV_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "addr",
				Usage: "listen address HOST:PORT",
			},
			&cli.StringFlag{
				Name:  "store",
				Usage: "store strategy: sharded, locked or owner",
			},
			&cli.IntFlag{
				Name:  "shards",
				Usage: "number of shards of the sharded store",
			},
			&cli.StringFlag{
				Name:  "metrics-addr",
				Usage: "serve Prometheus metrics on HOST:PORT",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "trace, debug, info, warn or error",
			},
		},
		Action: run,
	}
}

// flagOverrides maps the flags set on the command line to config keys
func flagOverrides(c *cli.Context) (map[string]any, error) {
	overrides := map[string]any{}
	if c.IsSet("addr") {
		host, port, err := net.SplitHostPort(c.String("addr"))
		if err != nil {
			return nil, fmt.Errorf("invalid --addr: %w", err)
		}
		p, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("invalid --addr port %q", port)
		}
		overrides["bind"] = host
		overrides["port"] = p
	}
	if c.IsSet("store") {
		overrides["store"] = c.String("store")
	}
	if c.IsSet("shards") {
		overrides["shards"] = c.Int("shards")
	}
	if c.IsSet("metrics-addr") {
		overrides["metrics_addr"] = c.String("metrics-addr")
	}
	if c.IsSet("log-level") {
		overrides["log.level"] = c.String("log-level")
	}
	return overrides, nil
}

func run(c *cli.Context) error {
	configFile := c.String("config")
	if configFile == "" && fileExists(defaultConfigFile) {
		configFile = defaultConfigFile
	}
	overrides, err := flagOverrides(c)
	if err != nil {
		return err
	}
	props, err := config.Load(configFile, overrides)
	if err != nil {
		return err
	}

	if err := logger.Setup(&logger.Settings{
		Level:      props.Log.Level,
		Path:       props.Log.Path,
		Name:       props.Log.Name,
		Ext:        "log",
		Stdout:     props.Log.Stdout,
		MaxSize:    props.Log.MaxSize,
		MaxBackups: props.Log.MaxBackups,
		MaxAge:     props.Log.MaxAge,
		Compress:   props.Log.Compress,
	}); err != nil {
		return err
	}
	defer logger.Close()

	data, err := dict.MakeDict(props.Store, props.Shards, props.OwnerQueueSize)
	if err != nil {
		return err
	}
	db := database.NewDatabase(data)

	m := metrics.New()
	m.RegisterKeys(db.Len)
	if props.MetricsAddr != "" {
		srv := serveMetrics(props.MetricsAddr, m)
		defer srv.Close()
	}

	log.WithFields(log.Fields{
		"addr":  props.Address(),
		"store": props.Store,
	}).Info("minikv starting")

	h := handler.MakeHandler(&handler.Config{
		MaxClients: props.MaxClients,
		RateLimit:  props.RateLimit,
	}, db, m)
	if err := tcp.ListenAndServeWithSignal(&tcp.Config{Address: props.Address()}, h); err != nil {
		// bind failed, handler.Close was never called
		db.Close()
		return err
	}
	log.Info("minikv stopped")
	return nil
}

func serveMetrics(addr string, m *metrics.Metrics) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Infof("metrics listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("metrics server failed")
		}
	}()
	return srv
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}
