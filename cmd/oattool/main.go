// Copyright 2023 The bit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Command oattool builds, inspects, validates and relocates OAT
// containers.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/urfave/cli/v3"
	"github.com/xyproto/env/v2"
)

const (
	logLevelEnv = "OATTOOL_LOG_LEVEL"
	logJSONEnv  = "OATTOOL_LOG_JSON"
)

type app struct {
	stdout io.Writer
	stderr io.Writer
	logger *slog.Logger
}

func newApp(stdout, stderr io.Writer) *cli.Command {
	a := &app{
		stdout: stdout,
		stderr: stderr,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	return &cli.Command{
		Name:      "oattool",
		Usage:     "Build and inspect OAT containers",
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "debug, info, warn or error (default from $" + logLevelEnv + ")",
				Value: env.Str(logLevelEnv, "info"),
			},
			&cli.BoolFlag{
				Name:  "log-json",
				Usage: "log as JSON lines (default from $" + logJSONEnv + ")",
				Value: env.Bool(logJSONEnv),
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			logger, err := newLogger(a.stderr, cmd.String("log-level"), cmd.Bool("log-json"))
			if err != nil {
				return ctx, err
			}
			a.logger = logger
			return ctx, nil
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return cli.ShowAppHelp(cmd)
		},
		Commands: []*cli.Command{
			a.buildCmd(),
			a.dumpCmd(),
			a.validateCmd(),
			a.relocateCmd(),
			a.getCmd(),
		},
	}
}

func newLogger(w io.Writer, level string, asJSON bool) (*slog.Logger, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		return nil, fmt.Errorf("bad log level %q: %w", level, err)
	}
	opts := &slog.HandlerOptions{Level: l}
	if asJSON {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

// fileArgs returns the command's positional arguments, requiring
// exactly n of them.
func fileArgs(cmd *cli.Command, n int, usage string) ([]string, error) {
	if cmd.NArg() != n {
		return nil, fmt.Errorf("usage: oattool %s %s", cmd.Name, usage)
	}
	return cmd.Args().Slice(), nil
}

func main() {
	if err := newApp(os.Stdout, os.Stderr).Run(context.Background(), os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
