// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/strata-dev/strata/internal/server"
	"github.com/strata-dev/strata/internal/store"
	_ "github.com/strata-dev/strata/internal/store/sqlite"
	strataerr "github.com/strata-dev/strata/pkg/errors"
)

func main() {
	spec, err := generateSpec()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	outPath := "api/openapi/spec.json"
	if len(os.Args) > 1 {
		outPath = os.Args[1]
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "error creating output dir: %v\n", err)
		os.Exit(1)
	}

	if err := os.WriteFile(outPath, spec, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "error writing spec: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("OpenAPI spec written to %s\n", outPath)
}

// generateSpec creates a server with all routes registered and extracts the
// OpenAPI spec that huma generates from the Go type annotations. The stores
// back onto a throwaway directory; no handler runs during generation.
func generateSpec() ([]byte, error) {
	dir, err := os.MkdirTemp("", "strata-openapi-*")
	if err != nil {
		return nil, strataerr.Wrapf(err, strataerr.CodeCLISetupFailure, "creating temp dir")
	}
	defer func() { _ = os.RemoveAll(dir) }()

	stores, err := store.NewStores(&store.StorageConfig{}, dir)
	if err != nil {
		return nil, strataerr.Wrapf(err, strataerr.CodeCLISetupFailure, "opening stores")
	}
	defer func() { _ = stores.Close() }()

	srv, err := server.New(server.Config{ListenAddr: "127.0.0.1:0"}, stores)
	if err != nil {
		return nil, strataerr.Wrapf(err, strataerr.CodeCLISetupFailure, "creating server")
	}

	return json.MarshalIndent(srv.API().OpenAPI(), "", "  ")
}
