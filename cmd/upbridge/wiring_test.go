package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snowmerak/upbridge/lib/config"
	"github.com/snowmerak/upbridge/lib/transport"
)

func TestConsoleOut(t *testing.T) {
	var stdout, stderr bytes.Buffer

	stdio := config.Config{Transport: config.TransportConfig{Kind: config.TransportStdio}}
	assert.Same(t, &stderr, consoleOut(stdio, &stdout, &stderr))

	redis := config.Config{Transport: config.TransportConfig{Kind: config.TransportRedis}}
	assert.Same(t, &stdout, consoleOut(redis, &stdout, &stderr))
}

func TestNewChannel(t *testing.T) {
	ctx := context.Background()

	ch, err := newChannel(ctx, config.TransportConfig{Kind: config.TransportStdio, Codec: "protobuf"})
	require.NoError(t, err)
	assert.IsType(t, &transport.StreamChannel{}, ch)

	ch, err = newChannel(ctx, config.TransportConfig{Kind: config.TransportRedis, Codec: "json"})
	require.NoError(t, err)
	assert.IsType(t, &transport.RedisChannel{}, ch)
	require.NoError(t, ch.Close())

	_, err = newChannel(ctx, config.TransportConfig{Kind: config.TransportStdio, Codec: "xml"})
	assert.Error(t, err)

	_, err = newChannel(ctx, config.TransportConfig{Kind: "smoke-signal", Codec: "json"})
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	logger, err := newLogger(config.LogConfig{Level: "debug", Development: true})
	require.NoError(t, err)
	assert.NotNil(t, logger)

	_, err = newLogger(config.LogConfig{Level: "chatty"})
	assert.Error(t, err)
}

func TestRootCmd_Subcommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd().Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"watch", "toggle", "site", "interest"} {
		assert.True(t, names[want], want)
	}
}
