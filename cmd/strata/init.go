// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/strata-dev/strata/internal/config"
	strataerr "github.com/strata-dev/strata/pkg/errors"
)

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default config file",
		Long:  "Write the commented default configuration to the config path (or --config) and print where it went. Refuses to overwrite an existing file unless --force is given.",
		RunE:  runInit,
	}

	cmd.Flags().Bool("force", false, "overwrite an existing config file")

	return cmd
}

func runInit(cmd *cobra.Command, _ []string) error {
	cfgPath, _ := cmd.Flags().GetString("config")
	if cfgPath == "" {
		var err error
		cfgPath, err = config.DefaultConfigPath()
		if err != nil {
			return err
		}
	}

	force, _ := cmd.Flags().GetBool("force")
	if _, err := os.Stat(cfgPath); err == nil && !force {
		return strataerr.Errorf(strataerr.CodeCLIInputInvalid,
			"config already exists at %s (use --force to overwrite)", cfgPath)
	}

	if err := os.MkdirAll(filepath.Dir(cfgPath), 0o700); err != nil {
		return strataerr.Wrapf(err, strataerr.CodeCLISetupFailure, "creating config directory")
	}
	if err := os.WriteFile(cfgPath, config.DefaultConfigYAML, 0o600); err != nil {
		return strataerr.Wrapf(err, strataerr.CodeCLISetupFailure, "writing config")
	}

	_, err := fmt.Fprintf(cmd.OutOrStdout(), "Wrote default config to %s\n", cfgPath)
	return err
}
