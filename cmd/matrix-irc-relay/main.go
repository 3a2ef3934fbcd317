// Copyright 2024-2026 Aiku AI
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Command matrix-irc-relay is a bidirectional message relay between an
// IRC channel and a Matrix room. Messages posted in either venue are
// forwarded verbatim to the other, prefixed with the sender's name.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.mau.fi/util/exzerolog"
	"golang.org/x/sync/errgroup"

	"github.com/aiku/matrix-irc-relay/pkg/irc"
	"github.com/aiku/matrix-irc-relay/pkg/matrix"
	"github.com/aiku/matrix-irc-relay/pkg/relay"
)

// These are filled at build time with -ldflags.
var (
	Tag       = "unknown"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the config file")
	exampleConfig := flag.Bool("example-config", false, "print the example config and exit")
	version := flag.Bool("version", false, "print version information and exit")
	flag.Parse()

	if *version {
		fmt.Printf("matrix-irc-relay %s (%s, built %s)\n", Tag, Commit, BuildTime)
		return
	}
	if *exampleConfig {
		fmt.Print(relay.ExampleConfig)
		return
	}

	cfg, err := relay.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log, err := cfg.Logging.Compile()
	if err != nil {
		fmt.Fprintln(os.Stderr, "invalid logging config:", err)
		os.Exit(1)
	}
	exzerolog.SetupDefaults(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	towardChannel := relay.NewQueue()
	towardGroup := relay.NewQueue()

	ircClient := irc.NewClient(irc.Config{
		Addr:             cfg.IRC.Addr(),
		TLS:              cfg.IRC.TLS,
		Nickname:         cfg.IRC.Nickname,
		RealName:         cfg.IRC.RealName,
		Channel:          cfg.IRC.Channel,
		NickServPassword: cfg.IRC.NickServPassword,
		SilenceTimeout:   time.Duration(cfg.IRC.SilenceTimeoutSeconds) * time.Second,
	}, log.With().Str("component", "irc").Logger(), towardGroup, towardChannel)

	mxClient, err := matrix.NewClient(matrix.Config{
		Homeserver:  cfg.Matrix.Homeserver,
		UserID:      cfg.Matrix.UserID,
		AccessToken: cfg.Matrix.AccessToken,
		Password:    cfg.Matrix.Password,
		RoomID:      cfg.Matrix.RoomID,
	}, log.With().Str("component", "matrix").Logger(), towardChannel, towardGroup)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Matrix client")
	}

	log.Info().Str("version", Tag).Msg("Starting matrix-irc-relay")

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return ircClient.Run(ctx) })
	g.Go(func() error { return ircClient.SendLoop(ctx) })
	g.Go(func() error { return mxClient.Run(ctx) })
	g.Go(func() error { return mxClient.SendLoop(ctx) })

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal().Err(err).Msg("Relay exited with error")
	}
	log.Info().Msg("Shutdown complete")
}
