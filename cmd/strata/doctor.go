// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"

	"github.com/strata-dev/strata/internal/config"
	strataerr "github.com/strata-dev/strata/pkg/errors"
)

func newDoctorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Run diagnostics",
		Long:  "Check binary health, config, database files, disk space, and whether the server is reachable.",
		RunE:  runDoctor,
	}

	cmd.Flags().String("address", "127.0.0.1:18990", "server address to check")

	return cmd
}

func runDoctor(cmd *cobra.Command, _ []string) error {
	w := cmd.OutOrStdout()
	addr, _ := cmd.Flags().GetString("address")

	cfg, cfgErr := loadConfig(cmd)
	dataDir := ""
	if cfgErr == nil {
		dataDir, _ = resolveDataDir(cmd, cfg)
	}

	checks := []struct {
		name string
		fn   func() string
	}{
		{"Binary", checkBinary},
		{"Platform", checkPlatform},
		{"Config", func() string { return checkConfig(cfgErr) }},
		{"Server", func() string { return checkServer(addr) }},
		{"Databases", func() string { return checkDatabases(dataDir) }},
		{"Disk Space", func() string { return checkDiskSpace(dataDir) }},
	}

	for _, c := range checks {
		if _, err := fmt.Fprintf(w, "%-20s %s\n", c.name+":", c.fn()); err != nil {
			return err
		}
	}

	return nil
}

func checkBinary() string {
	return fmt.Sprintf("strata %s (%s/%s)", version, runtime.GOOS, runtime.GOARCH)
}

func checkPlatform() string {
	return fmt.Sprintf("%s/%s, Go %s", runtime.GOOS, runtime.GOARCH, runtime.Version())
}

func checkConfig(cfgErr error) string {
	if cfgErr != nil {
		return fmt.Sprintf("error: %s", cfgErr)
	}
	path, err := config.DefaultConfigPath()
	if err == nil {
		if _, statErr := os.Stat(path); statErr == nil {
			return fmt.Sprintf("loaded from %s", path)
		}
	}
	return "using defaults (no config file found)"
}

func checkServer(addr string) string {
	sc := newServerClient(addr)
	var body struct {
		Status string `json:"status"`
	}
	if err := sc.getJSON("/health", &body); err != nil {
		if strataerr.HasCode(err, strataerr.CodeCLIServerNotRunning) {
			return fmt.Sprintf("not running at %s (run 'strata serve')", addr)
		}
		return fmt.Sprintf("error: %s", err)
	}
	return fmt.Sprintf("%s at %s", body.Status, addr)
}

func checkDatabases(dataDir string) string {
	if dataDir == "" {
		return "data directory unknown (config failed to load)"
	}
	entries, err := os.ReadDir(dataDir)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Sprintf("no data directory at %s (created on first write)", dataDir)
		}
		return fmt.Sprintf("error reading data directory: %s", err)
	}

	var dbs []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".db") {
			dbs = append(dbs, e.Name())
		}
	}

	if len(dbs) == 0 {
		return fmt.Sprintf("no database files in %s", dataDir)
	}
	return fmt.Sprintf("%d database file(s): %s", len(dbs), strings.Join(dbs, ", "))
}

func checkDiskSpace(dataDir string) string {
	path := dataDir
	if path == "" {
		path, _ = os.UserHomeDir()
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		// Fall back to the parent if the data dir doesn't exist yet.
		path = filepath.Dir(path)
	}

	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return fmt.Sprintf("unable to check: %s", err)
	}

	availBytes := stat.Bavail * uint64(stat.Bsize)
	return formatBytes(availBytes) + " available"
}

// formatBytes formats a byte count as a human-readable string.
func formatBytes(b uint64) string {
	const (
		gb = 1024 * 1024 * 1024
		mb = 1024 * 1024
	)
	switch {
	case b >= gb:
		return fmt.Sprintf("%.1f GB", float64(b)/float64(gb))
	case b >= mb:
		return fmt.Sprintf("%.1f MB", float64(b)/float64(mb))
	default:
		return fmt.Sprintf("%d bytes", b)
	}
}
