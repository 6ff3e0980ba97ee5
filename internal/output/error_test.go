package output_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cipherlink/cipherlink/internal/output"
	clerr "github.com/cipherlink/cipherlink/pkg/errors"
)

func TestFormatErrorNil(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, output.FormatError(&buf, nil, output.FormatJSON))
	assert.Empty(t, buf.String())
}

func TestFormatErrorJSONStructured(t *testing.T) {
	t.Parallel()

	err := clerr.WithSuggestion(
		clerr.WithDetails(clerr.ErrUserRejected, map[string]string{"method": "eth_requestAccounts"}),
		"approve the request in your wallet and retry",
	)

	var buf bytes.Buffer
	require.NoError(t, output.FormatError(&buf, err, output.FormatJSON))

	var decoded output.ErrorOutput
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "USER_REJECTED", decoded.Error.Code)
	assert.Equal(t, "request rejected by user", decoded.Error.Message)
	assert.Equal(t, "eth_requestAccounts", decoded.Error.Details["method"])
	assert.Equal(t, "approve the request in your wallet and retry", decoded.Error.Suggestion)
	assert.Equal(t, clerr.ExitRejected, decoded.Error.ExitCode)
}

func TestFormatErrorJSONGeneric(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, output.FormatError(&buf, errors.New("boom"), output.FormatJSON))

	var decoded output.ErrorOutput
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "GENERAL_ERROR", decoded.Error.Code)
	assert.Equal(t, "boom", decoded.Error.Message)
	assert.Equal(t, clerr.ExitGeneral, decoded.Error.ExitCode)
}

func TestFormatErrorText(t *testing.T) {
	t.Parallel()

	err := clerr.WithSuggestion(
		clerr.WithDetails(clerr.ErrNotConnected, map[string]string{"command": "network switch"}),
		"run 'cipherlink connect' first",
	)

	var buf bytes.Buffer
	require.NoError(t, output.FormatError(&buf, err, output.FormatText))

	text := buf.String()
	assert.Contains(t, text, "Error: wallet not connected")
	assert.Contains(t, text, "command: network switch")
	assert.Contains(t, text, "Suggestion: run 'cipherlink connect' first")
}

func TestFormatErrorTextGeneric(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, output.FormatError(&buf, errors.New("plain failure"), output.FormatText))
	assert.Equal(t, "Error: plain failure\n", buf.String())
}

func TestFormatSuccess(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, output.FormatSuccess(&buf, "disconnected", output.FormatJSON))

	var decoded map[string]string
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "success", decoded["status"])
	assert.Equal(t, "disconnected", decoded["message"])

	buf.Reset()
	require.NoError(t, output.FormatSuccess(&buf, "disconnected", output.FormatText))
	assert.Equal(t, "disconnected\n", buf.String())
}
