package main

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finsheet/internal/config"
	"finsheet/internal/store"
)

func TestRun_RequiresDatabase(t *testing.T) {
	t.Setenv(config.ConfigFileEnvVar, "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DATABASE_HOSTNAME", "")
	t.Setenv("LOGGING_OUTPUT", "console")

	err := run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, store.ErrNotConfigured))
}

func TestRun_InvalidConfiguration(t *testing.T) {
	t.Setenv(config.ConfigFileEnvVar, "")
	t.Setenv("SERVER_PORT", "0")

	err := run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid server port")
}
