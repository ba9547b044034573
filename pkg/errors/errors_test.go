// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package errors_test

import (
	stderrors "errors"
	"net/http"
	"testing"

	strataerr "github.com/strata-dev/strata/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---------------------------------------------------------------------------
// New / Errorf
// ---------------------------------------------------------------------------

func TestNewIncludesCodeAndFields(t *testing.T) {
	err := strataerr.New(
		strataerr.CodeMutableKeyNotFound,
		"key missing",
		strataerr.FieldNamespace("counters"),
		strataerr.FieldKey("visits"),
	)

	require.Error(t, err)
	assert.Equal(t, strataerr.CodeMutableKeyNotFound, strataerr.CodeOf(err))
	assert.True(t, strataerr.HasCode(err, strataerr.CodeMutableKeyNotFound))

	fields := strataerr.FieldsOf(err)
	assert.Equal(t, "counters", fields["namespace"])
	assert.Equal(t, "visits", fields["key"])
}

func TestNewWithNoFields(t *testing.T) {
	err := strataerr.New(strataerr.CodeStoreDatabaseFailure, "connection lost")
	require.Error(t, err)
	assert.Equal(t, strataerr.CodeStoreDatabaseFailure, strataerr.CodeOf(err))
	assert.Contains(t, err.Error(), "connection lost")
}

func TestErrorfFormatsMessage(t *testing.T) {
	err := strataerr.Errorf(strataerr.CodeRecordVersionNotFound, "record %s version %d", "doc-1", 7)
	require.Error(t, err)
	assert.Equal(t, strataerr.CodeRecordVersionNotFound, strataerr.CodeOf(err))
	assert.Contains(t, err.Error(), "record doc-1 version 7")
}

func TestErrorfWrapsInnerError(t *testing.T) {
	inner := stderrors.New("disk full")
	err := strataerr.Errorf(strataerr.CodeStoreDatabaseFailure, "write failed: %w", inner)
	require.Error(t, err)
	assert.ErrorIs(t, err, inner)
	assert.Equal(t, strataerr.CodeStoreDatabaseFailure, strataerr.CodeOf(err))
}

// ---------------------------------------------------------------------------
// Wrap / Wrapf
// ---------------------------------------------------------------------------

func TestWrapPreservesWrappedErrorAndCode(t *testing.T) {
	root := stderrors.New("record missing")
	err := strataerr.Wrap(
		root,
		strataerr.CodeRecordNotFound,
		"loading record",
		strataerr.FieldRecordID("doc-42"),
	)

	require.Error(t, err)
	assert.ErrorIs(t, err, root)
	assert.Equal(t, strataerr.CodeRecordNotFound, strataerr.CodeOf(err))
	assert.True(t, strataerr.IsNotFound(err))
	assert.Equal(t, "doc-42", strataerr.FieldsOf(err)["record_id"])
}

func TestWrapNilReturnsNil(t *testing.T) {
	assert.NoError(t, strataerr.Wrap(nil, strataerr.CodeServerInternalFailure, "ignored"))
}

func TestWrapfNilReturnsNil(t *testing.T) {
	assert.NoError(t, strataerr.Wrapf(nil, strataerr.CodeServerInternalFailure, "ignored %s", "arg"))
}

// ---------------------------------------------------------------------------
// Classification helpers
// ---------------------------------------------------------------------------

func TestClassificationHelpers(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(error) bool
		want  bool
	}{
		{"mutable key not found is not_found", strataerr.New(strataerr.CodeMutableKeyNotFound, "x"), strataerr.IsNotFound, true},
		{"record not found is not_found", strataerr.New(strataerr.CodeRecordNotFound, "x"), strataerr.IsNotFound, true},
		{"invalid input is invalid", strataerr.New(strataerr.CodeStoreInvalidInput, "x"), strataerr.IsInvalidInput, true},
		{"oversized value is invalid", strataerr.New(strataerr.CodeMutableValueTooLarge, "x"), strataerr.IsInvalidInput, true},
		{"invalid status value is invalid", strataerr.New(strataerr.CodeStatusInvalidValue, "x"), strataerr.IsInvalidInput, true},
		{"database failure is database", strataerr.New(strataerr.CodeStoreDatabaseFailure, "x"), strataerr.IsDatabaseFailure, true},
		{"graphsync failure is connection", strataerr.New(strataerr.CodeGraphSyncConnectionFailure, "x"), strataerr.IsConnectionFailure, true},
		{"upstream failure", strataerr.New(strataerr.CodeProviderUpstreamFailure, "x"), strataerr.IsUpstreamFailure, true},
		{"not found is not invalid", strataerr.New(strataerr.CodeRecordNotFound, "x"), strataerr.IsInvalidInput, false},
		{"plain error has no code", stderrors.New("plain"), strataerr.IsNotFound, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.check(tt.err))
		})
	}
}

func TestCodeOfPlainError(t *testing.T) {
	assert.Equal(t, strataerr.Code(""), strataerr.CodeOf(stderrors.New("plain")))
	assert.Equal(t, strataerr.Code(""), strataerr.CodeOf(nil))
}

// Error codes are the public contract: callers grep for these exact strings.
func TestCodeTokensAreStable(t *testing.T) {
	assert.Equal(t, "store.mutable.key.not_found", string(strataerr.CodeMutableKeyNotFound))
	assert.Equal(t, "store.record.not_found", string(strataerr.CodeRecordNotFound))
	assert.Equal(t, "store.record.version.not_found", string(strataerr.CodeRecordVersionNotFound))
	assert.Equal(t, "store.status.invalid_value", string(strataerr.CodeStatusInvalidValue))
	assert.Equal(t, "store.mutable.value.too_large", string(strataerr.CodeMutableValueTooLarge))
}

// ---------------------------------------------------------------------------
// HTTP status mapping
// ---------------------------------------------------------------------------

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, strataerr.HTTPStatus(strataerr.New(strataerr.CodeRecordNotFound, "x")))
	assert.Equal(t, http.StatusBadRequest, strataerr.HTTPStatus(strataerr.New(strataerr.CodeStoreInvalidInput, "x")))
	assert.Equal(t, http.StatusBadGateway, strataerr.HTTPStatus(strataerr.New(strataerr.CodeProviderUpstreamFailure, "x")))
	assert.Equal(t, http.StatusInternalServerError, strataerr.HTTPStatus(stderrors.New("plain")))
}

func TestWithAddsFieldsToExistingChain(t *testing.T) {
	err := strataerr.New(strataerr.CodeFactNotFound, "missing fact")
	err = strataerr.With(err, strataerr.FieldSpaceID("sp-1"))

	assert.Equal(t, strataerr.CodeFactNotFound, strataerr.CodeOf(err))
	assert.Equal(t, "sp-1", strataerr.FieldsOf(err)["space_id"])
}
