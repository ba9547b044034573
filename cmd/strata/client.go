// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package main

import (
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	strataerr "github.com/strata-dev/strata/pkg/errors"
)

// defaultHTTPClient is the package-level HTTP client used by server
// commands. Overridden in tests via httptest.
var defaultHTTPClient = &http.Client{
	Timeout: 5 * time.Second,
}

// serverClient provides HTTP access to a running strata server.
type serverClient struct {
	baseURL string
	http    *http.Client
}

// newServerClient creates a client targeting the given host:port address.
func newServerClient(addr string) *serverClient {
	return &serverClient{
		baseURL: "http://" + addr,
		http:    defaultHTTPClient,
	}
}

// getJSON performs a GET request and decodes the JSON response into dest.
// Returns a cli.server.not_running error on connection refused.
func (c *serverClient) getJSON(path string, dest any) error {
	resp, err := c.http.Get(c.baseURL + path)
	if err != nil {
		if isDialError(err) {
			return strataerr.New(strataerr.CodeCLIServerNotRunning, "server is not running (connection refused)")
		}
		return strataerr.Wrapf(err, strataerr.CodeCLISetupFailure, "request failed")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return strataerr.Errorf(strataerr.CodeCLISetupFailure,
			"server returned status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return strataerr.Wrapf(err, strataerr.CodeCLISetupFailure, "invalid response")
	}
	return nil
}

// isDialError returns true if err is a net dial error (connection refused, etc.).
func isDialError(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return opErr.Op == "dial"
	}
	return false
}
