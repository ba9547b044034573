// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/strata-dev/strata/internal/store"
)

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats <space-id>",
		Short: "Print live per-space counts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stores, _, err := openStores(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = stores.Close() }()

			agg := store.NewAggregator(stores.Conversations, stores.Memories, stores.Facts)
			stats, err := agg.SpaceStats(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, stats)
		},
	}
}
