package main

import (
	"context"
	"testing"

	"github.com/RichardoC/palchat/internal/chat"
	"github.com/RichardoC/palchat/internal/config"
	"github.com/RichardoC/palchat/internal/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestOpenStore(t *testing.T) {
	ctx := context.Background()

	store, closeStore, err := openStore(ctx, config.StoreConfig{Driver: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &chat.MemoryStore{}, store)
	closeStore()

	store, closeStore, err = openStore(ctx, config.StoreConfig{Driver: "sqlite", DSN: db.MemoryDSN})
	require.NoError(t, err)
	assert.IsType(t, &db.Database{}, store)
	closeStore()

	_, _, err = openStore(ctx, config.StoreConfig{Driver: "redis"})
	require.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	logger, err := newLogger(config.LogConfig{Level: "debug", Development: true})
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))

	_, err = newLogger(config.LogConfig{Level: "loud"})
	require.Error(t, err)
}

func TestRootCommandRejectsBadConfig(t *testing.T) {
	t.Setenv("PALCHAT_STORE_DRIVER", "redis")
	cmd := newRootCmd()
	cmd.SetArgs([]string{})
	err := cmd.ExecuteContext(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.driver")
}
