// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/strata-dev/strata/internal/graphsync"
	"github.com/strata-dev/strata/internal/server"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the read-only HTTP API",
		Long:  "Open the storage backend and serve the read API until interrupted.",
		RunE:  runServe,
	}

	cmd.Flags().String("listen", "", "override listen address (host:port)")

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	stores, cfg, err := openStores(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = stores.Close() }()

	listen := cfg.Server.Listen
	if flagListen, _ := cmd.Flags().GetString("listen"); flagListen != "" {
		listen = flagListen
	}

	// Constructing graph sync at startup surfaces a misconfiguration warning
	// immediately instead of on the first write.
	graphsync.New(graphsync.Config{
		Endpoint: cfg.GraphSync.Endpoint,
		APIKey:   cfg.GraphSync.APIKey,
		Enabled:  cfg.GraphSync.Enabled,
	})

	srv, err := server.New(server.Config{ListenAddr: listen}, stores)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if _, err := fmt.Fprintf(cmd.OutOrStdout(), "Serving strata on %s\n", listen); err != nil {
		return err
	}

	return srv.Start(ctx)
}
