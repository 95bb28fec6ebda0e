package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/sushiag/go-pixel-canvas/internal/config"
	"github.com/sushiag/go-pixel-canvas/internal/logging"
	"github.com/sushiag/go-pixel-canvas/internal/palette"
	"github.com/sushiag/go-pixel-canvas/internal/session"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	bootLog := logging.NewWithOutput(os.Stderr, "info", "text")
	cfg, err := config.Load(bootLog)
	if err != nil {
		return err
	}

	var radius int
	flagSet := pflag.NewFlagSet("canvas-client", pflag.ContinueOnError)
	flagSet.StringVar(&cfg.BackendURL, "backend", cfg.BackendURL, "board server base URL")
	flagSet.StringVar(&cfg.BackendWSURL, "backend-ws", cfg.BackendWSURL, "board server websocket URL")
	flagSet.IntVar(&cfg.GridSize, "grid-size", cfg.GridSize, "board side length in cells (even)")
	flagSet.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level")
	flagSet.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "log format: json or text")
	flagSet.IntVar(&radius, "radius", 4, "cells shown around the crosshair")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	// stdout belongs to the board view
	log := logging.NewWithOutput(os.Stderr, cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	renderer := &textRenderer{out: os.Stdout, palette: palette.Default(), radius: radius}
	s := session.New(session.OptionsFromConfig(cfg), renderer, logging.Component(log, "session"))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go readCommands(ctx, cancel, s, os.Stdin, os.Stdout, log)

	if err := s.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func readCommands(ctx context.Context, quit context.CancelFunc, s *session.Session, in io.Reader, out io.Writer, log *logrus.Logger) {
	defer quit()

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		act, events, err := parseCommand(scanner.Text())
		if err != nil {
			fmt.Fprintln(out, err)
			continue
		}

		switch act {
		case actionQuit:
			return
		case actionHelp:
			fmt.Fprintln(out, helpText)
		case actionResync:
			s.Resync()
		case actionPicker:
			ps, err := s.Picker(ctx)
			if err != nil {
				return
			}
			if !ps.Open {
				fmt.Fprintln(out, "picker closed")
			} else {
				fmt.Fprintf(out, "picker open at (%d, %d), colors %v\n", ps.Row, ps.Col, ps.Choices)
			}
		case actionEvents:
			for _, ev := range events {
				if err := s.Submit(ctx, ev); err != nil {
					return
				}
			}
		}
	}
	if err := scanner.Err(); err != nil {
		log.WithError(err).Error("Reading commands failed")
	}
}
