// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/strata-dev/strata/internal/config"
	"github.com/strata-dev/strata/internal/store"
	_ "github.com/strata-dev/strata/internal/store/sqlite"
	strataerr "github.com/strata-dev/strata/pkg/errors"
)

// NewRootCmd creates the root strata command with all subcommands registered.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "strata",
		Short:         "Strata — layered memory storage",
		Long:          "Strata stores versioned records, mutable keys, facts, conversations and semantic memories for agent systems.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags resolved by loadConfig.
	root.PersistentFlags().StringP("config", "c", "", "path to config file")
	root.PersistentFlags().String("data-dir", "", "path to data directory")

	root.AddCommand(
		newInitCmd(),
		newServeCmd(),
		newStatusCmd(),
		newKVCmd(),
		newRecordCmd(),
		newStatsCmd(),
		newConfigCmd(),
		newDoctorCmd(),
		newVersionCmd(),
	)

	return root
}

// loadConfig resolves the config path (flag, then the default location,
// bootstrapping a commented default file on first run) and loads it.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfgPath, _ := cmd.Flags().GetString("config")
	if cfgPath == "" {
		defaultPath, err := config.DefaultConfigPath()
		if err != nil {
			return nil, err
		}
		if _, statErr := os.Stat(defaultPath); statErr == nil {
			cfgPath = defaultPath
		} else if path := config.BootstrapConfig(); path != "" {
			cfgPath = path
		}
		// No config file anywhere: defaults and env vars still apply.
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}

	config.WarnInsecurePermissions(cfgPath)
	return cfg, nil
}

// resolveDataDir returns the storage directory: flag, then config, then
// the platform default.
func resolveDataDir(cmd *cobra.Command, cfg *config.Config) (string, error) {
	if dir, _ := cmd.Flags().GetString("data-dir"); dir != "" {
		return dir, nil
	}
	if cfg.Storage.DataPath != "" {
		return cfg.Storage.DataPath, nil
	}
	return config.DefaultDataPath()
}

// openStores loads config and opens the storage backend for commands that
// operate on the data directly.
func openStores(cmd *cobra.Command) (*store.Stores, *config.Config, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}

	dataDir, err := resolveDataDir(cmd, cfg)
	if err != nil {
		return nil, nil, err
	}
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, nil, strataerr.Wrapf(err, strataerr.CodeCLISetupFailure, "creating data directory %s", dataDir)
	}

	stores, err := store.NewStores(cfg.StoreConfig(), dataDir)
	if err != nil {
		return nil, nil, err
	}
	return stores, cfg, nil
}
