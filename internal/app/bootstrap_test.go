package app

import (
	"context"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-partyshop/internal/config"
)

func TestOpenRedis(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client, err := OpenRedis(context.Background(), &config.Config{RedisURL: "redis://" + mr.Addr() + "/0"}, zerolog.Nop())
	require.NoError(t, err)
	defer func() { _ = client.Close() }()
	require.NoError(t, client.Set(context.Background(), "k", "v", 0).Err())
	require.True(t, mr.Exists("k"))

	_, err = OpenRedis(context.Background(), &config.Config{RedisURL: "not a url"}, zerolog.Nop())
	require.Error(t, err)
}

func TestAsynqRedis(t *testing.T) {
	opt, err := AsynqRedis(&config.Config{RedisURL: "redis://:secret@cache:6380/2"})
	require.NoError(t, err)
	client, ok := opt.(asynq.RedisClientOpt)
	require.True(t, ok)
	require.Equal(t, "cache:6380", client.Addr)
	require.Equal(t, 2, client.DB)
	require.Equal(t, "secret", client.Password)
}

func TestInitTracingDisabled(t *testing.T) {
	shutdown := InitTracing(context.Background(), &config.Config{OTELExporter: "none"}, "partyshop-api", zerolog.Nop())
	require.NoError(t, shutdown(context.Background()))
}

func TestOpenPostgresRejectsBadURL(t *testing.T) {
	_, err := OpenPostgres(context.Background(), &config.Config{DatabaseURL: "::nope"}, "test")
	require.Error(t, err)
}
