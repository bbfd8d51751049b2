package main

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-partyshop/internal/config"
)

func TestRunReturnsStartupErrors(t *testing.T) {
	cfg := &config.Config{
		DatabaseURL:      "::nope",
		OTELExporter:     "none",
		MetricsNamespace: "partyshop_worker_test",
	}
	err := run(cfg, zerolog.Nop())
	require.ErrorContains(t, err, "open database")
}
