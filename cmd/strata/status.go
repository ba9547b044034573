// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	strataerr "github.com/strata-dev/strata/pkg/errors"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show server status",
		Long:  "Check the running server's health endpoint and display status information.",
		RunE:  runStatus,
	}

	cmd.Flags().String("address", "127.0.0.1:18990", "server address to check")

	return cmd
}

func runStatus(cmd *cobra.Command, _ []string) error {
	addr, _ := cmd.Flags().GetString("address")
	out := cmd.OutOrStdout()

	sc := newServerClient(addr)
	var body struct {
		Status string `json:"status"`
	}
	if err := sc.getJSON("/health", &body); err != nil {
		if strataerr.HasCode(err, strataerr.CodeCLIServerNotRunning) {
			_, _ = fmt.Fprintf(out, "Server at %s is not running (connection refused)\n", addr)
			return nil
		}
		_, _ = fmt.Fprintf(out, "Server at %s: %s\n", addr, err)
		return nil
	}

	_, _ = fmt.Fprintf(out, "Server at %s: %s\n", addr, body.Status)
	return nil
}
