package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/sushiag/go-pixel-canvas/internal/boardserver"
	"github.com/sushiag/go-pixel-canvas/internal/config"
	"github.com/sushiag/go-pixel-canvas/internal/logging"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	bootLog := logging.New("info", "text")
	cfg, err := config.Load(bootLog)
	if err != nil {
		return err
	}

	flagSet := pflag.NewFlagSet("canvas-server", pflag.ContinueOnError)
	flagSet.StringVar(&cfg.ServerAddr, "addr", cfg.ServerAddr, "listen address")
	flagSet.IntVar(&cfg.GridSize, "grid-size", cfg.GridSize, "board side length in cells (even)")
	flagSet.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level")
	flagSet.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "log format: json or text")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log := logging.New(cfg.LogLevel, cfg.LogFormat)
	srv, err := boardserver.StartServer(cfg.ServerAddr, cfg.GridSize, logging.Component(log, "boardserver"))
	if err != nil {
		return err
	}
	log.WithField("url", srv.URL()).Info("Board server started. Press CTRL+C to exit.")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	return srv.Close()
}
