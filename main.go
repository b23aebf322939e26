package main

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof" //nolint:gosec
	"net/url"
	"os"
	"os/signal"
	"syscall"

	"github.com/bsv-blockchain/utxodump/cmd/dump"
	"github.com/bsv-blockchain/utxodump/cmd/inspect"
	"github.com/bsv-blockchain/utxodump/errors"
	"github.com/bsv-blockchain/utxodump/settings"
	"github.com/bsv-blockchain/utxodump/ulogger"
	"github.com/felixge/fgprof"
	"github.com/ordishs/gocore"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
)

// Name used by build script for the binaries. (Please keep on single line)
const progname = "utxodump"

// Version & commit strings injected at build with -ldflags -X...
var version string
var commit string

func init() {
	gocore.SetInfo(progname, version, commit)
}

func main() {
	tSettings := settings.NewSettings()

	app := &cli.App{
		Name:    progname,
		Usage:   "Replay a blockchain into a utxo set and export it",
		Version: fmt.Sprintf("%s (%s)", version, commit),
		Commands: []*cli.Command{
			{
				Name:  "dump",
				Usage: "Replay the block files and export the resulting utxo set",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "blocks",
						Usage: "folder holding the blk*.dat files",
						Value: tSettings.BlockFeed.BlocksDir,
					},
					&cli.StringFlag{
						Name:  "store",
						Usage: "store URL, one of the schemes memory, mongodb, postgres, sqlite, csv or file",
						Value: tSettings.Replay.StoreURL.String(),
					},
					&cli.IntFlag{
						Name:  "start",
						Usage: "first height to apply",
						Value: tSettings.Replay.StartHeight,
					},
					&cli.IntFlag{
						Name:  "end",
						Usage: "last height to apply, -1 for every available block",
						Value: tSettings.Replay.EndHeight,
					},
					&cli.StringFlag{
						Name:  "log-level",
						Usage: "DEBUG, INFO, WARN or ERROR",
						Value: tSettings.LogLevel,
					},
				},
				Action: func(c *cli.Context) error {
					return runDump(c, tSettings)
				},
			},
			{
				Name:      "inspect",
				Usage:     "Print the summary and first records of a utxo-set file",
				ArgsUsage: "<file>",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "records",
						Usage: "number of records to print",
						Value: 10,
					},
				},
				Action: func(c *cli.Context) error {
					if c.NArg() != 1 {
						return cli.Exit("inspect expects exactly one file", 1)
					}

					return inspect.Run(os.Stdout, c.Args().First(), c.Int("records"))
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func runDump(c *cli.Context, tSettings *settings.Settings) error {
	storeURL, err := url.Parse(c.String("store"))
	if err != nil {
		return errors.NewConfigurationError("invalid store URL %q", c.String("store"), err)
	}

	tSettings.BlockFeed.BlocksDir = c.String("blocks")
	tSettings.Replay.StoreURL = storeURL
	tSettings.Replay.StartHeight = c.Int("start")
	tSettings.Replay.EndHeight = c.Int("end")
	tSettings.LogLevel = c.String("log-level")

	logger := ulogger.New(progname, ulogger.WithLevel(tSettings.LogLevel), ulogger.WithLoggerType(tSettings.LoggerType))

	stats := gocore.Config().Stats()
	logger.Infof("STATS\n%s\nVERSION\n-------\n%s (%s)\n\n", stats, version, commit)

	startHTTP(logger, tSettings)

	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	defer signal.Stop(interrupt)

	go func() {
		select {
		case <-interrupt:
			logger.Infof("received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
	}()

	if _, err = dump.Run(ctx, logger, tSettings); err != nil {
		logger.Errorf("dump failed: %v", err)
		return cli.Exit("", 2)
	}

	return nil
}

// startHTTP serves the profiler and the prometheus endpoint when configured.
func startHTTP(logger ulogger.Logger, tSettings *settings.Settings) {
	if tSettings.ProfilerAddr != "" {
		gocore.RegisterStatsHandlers()
		http.DefaultServeMux.Handle("/debug/fgprof", fgprof.Handler())

		logger.Infof("Profiler available at http://%s/debug/pprof", tSettings.ProfilerAddr)

		go func() {
			//nolint:gosec
			logger.Errorf("%v", http.ListenAndServe(tSettings.ProfilerAddr, nil))
		}()
	}

	if tSettings.PrometheusEndpoint != "" {
		mux := http.NewServeMux()
		mux.Handle(tSettings.PrometheusEndpoint, promhttp.Handler())

		logger.Infof("Starting prometheus endpoint on %s%s", tSettings.PrometheusListenAddress, tSettings.PrometheusEndpoint)

		go func() {
			//nolint:gosec
			logger.Errorf("%v", http.ListenAndServe(tSettings.PrometheusListenAddress, mux))
		}()
	}
}
