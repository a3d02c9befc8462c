package cli_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/plugboard/internal/cli"
)

func TestParsePositionalPath(t *testing.T) {
	var out bytes.Buffer
	cfg, exit, err := cli.Parse([]string{"./providers"}, &out)
	require.NoError(t, err)
	assert.False(t, exit)
	assert.Equal(t, "./providers", cfg.ProvidersPath)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestParseFlagsOverridePositional(t *testing.T) {
	var out bytes.Buffer
	cfg, _, err := cli.Parse([]string{
		"--providers", "conf/providers",
		"--module-prefix", "modules/email_, modules/storage_",
		"--collect-discovery-errors",
		"--log-format", "text",
		"--log-level", "debug",
	}, &out)
	require.NoError(t, err)
	assert.Equal(t, "conf/providers", cfg.ProvidersPath)
	assert.Equal(t, []string{"modules/email_", "modules/storage_"}, cfg.ModulePrefixes)
	assert.True(t, cfg.CollectDiscoveryErrors)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestParseNoPathPrintsUsageAndExitsCleanly(t *testing.T) {
	var out bytes.Buffer
	cfg, exit, err := cli.Parse(nil, &out)
	require.NoError(t, err)
	assert.True(t, exit)
	assert.Nil(t, cfg)
	assert.Contains(t, out.String(), "Usage:")
}

func TestParseRejectsBadLogValues(t *testing.T) {
	var out bytes.Buffer
	_, _, err := cli.Parse([]string{"--log-format", "yaml", "./providers"}, &out)
	var exitErr *cli.ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 2, exitErr.Code)

	_, _, err = cli.Parse([]string{"--log-level", "loud", "./providers"}, &out)
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 2, exitErr.Code)
}
