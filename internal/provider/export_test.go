// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package provider

// Exported for white-box testing from the provider_test package.
var (
	ParseCandidates  = parseCandidates
	ExtractJSONArray = extractJSONArray
)
