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

func newRecordCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "record",
		Short: "Operate on versioned records",
	}

	cmd.AddCommand(
		newRecordGetCmd(),
		newRecordAppendCmd(),
		newRecordHistoryCmd(),
	)

	return cmd
}

func newRecordGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <type> <id>",
		Short: "Print the current version of a record",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			stores, _, err := openStores(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = stores.Close() }()

			rec, err := stores.Versions.GetCurrent(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			if rec == nil {
				return strataerr.Errorf(strataerr.CodeRecordNotFound, "record %s/%s not found", args[0], args[1])
			}
			return printJSON(cmd, rec)
		},
	}
}

func newRecordAppendCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "append <type> <id> <json-data>",
		Short: "Append a new version to a record",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			data := json.RawMessage(args[2])
			if !json.Valid(data) {
				return strataerr.Errorf(strataerr.CodeCLIInputInvalid, "data is not valid JSON: %s", args[2])
			}

			stores, _, err := openStores(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = stores.Close() }()

			userID, _ := cmd.Flags().GetString("user")
			rec, err := stores.Versions.Append(cmd.Context(), args[0], args[1], data, store.AppendOpts{UserID: userID})
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "version %d\n", rec.Version)
			return nil
		},
	}

	cmd.Flags().String("user", "", "owning user id")
	return cmd
}

func newRecordHistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history <type> <id>",
		Short: "Print every retained version of a record",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			stores, _, err := openStores(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = stores.Close() }()

			versions, err := stores.Versions.GetHistory(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			return printJSON(cmd, versions)
		},
	}
}
