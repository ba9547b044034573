// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/strata-dev/strata/internal/store"
	strataerr "github.com/strata-dev/strata/pkg/errors"
)

func newKVCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kv",
		Short: "Operate on mutable key-value entries",
	}

	cmd.AddCommand(
		newKVGetCmd(),
		newKVSetCmd(),
		newKVListCmd(),
		newKVDeleteCmd(),
	)

	return cmd
}

func newKVGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <namespace> <key>",
		Short: "Print a mutable entry",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			stores, _, err := openStores(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = stores.Close() }()

			entry, err := stores.Mutable.GetRecord(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			return printJSON(cmd, entry)
		},
	}
}

func newKVSetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set <namespace> <key> <json-value>",
		Short: "Set a mutable entry",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			value := json.RawMessage(args[2])
			if !json.Valid(value) {
				return strataerr.Errorf(strataerr.CodeCLIInputInvalid, "value is not valid JSON: %s", args[2])
			}

			stores, _, err := openStores(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = stores.Close() }()

			userID, _ := cmd.Flags().GetString("user")
			entry, err := stores.Mutable.Set(cmd.Context(), args[0], args[1], value, store.SetOpts{UserID: userID})
			if err != nil {
				return err
			}
			return printJSON(cmd, entry)
		},
	}

	cmd.Flags().String("user", "", "owning user id")
	return cmd
}

func newKVListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list <namespace>",
		Short: "List mutable entries in a namespace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stores, _, err := openStores(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = stores.Close() }()

			prefix, _ := cmd.Flags().GetString("prefix")
			limit, _ := cmd.Flags().GetInt("limit")
			entries, err := stores.Mutable.List(cmd.Context(), store.MutableFilter{
				Namespace: args[0],
				KeyPrefix: prefix,
				Limit:     limit,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd, entries)
		},
	}

	cmd.Flags().String("prefix", "", "key prefix filter")
	cmd.Flags().Int("limit", 0, "maximum entries to return")
	return cmd
}

func newKVDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <namespace> <key>",
		Short: "Delete a mutable entry",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			stores, _, err := openStores(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = stores.Close() }()

			if err := stores.Mutable.Delete(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "deleted %s/%s\n", args[0], args[1])
			return err
		},
	}
}

// printJSON writes v to the command's stdout as indented JSON.
func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
