// Package testutil provides an in-memory cluster and session helpers shared
// by the package tests.
package testutil

import (
	"io"
	"log/slog"
	"testing"

	"github.com/paveg/rapids/internal/config"
	"github.com/paveg/rapids/internal/dataframe"
	"github.com/paveg/rapids/internal/monitoring"
)

// DiscardLogger returns a logger that drops everything.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// NewSession returns a session over cluster with a quiet logger, metrics
// enabled and counting on. Extra options are applied last.
func NewSession(tb testing.TB, cluster *FakeCluster, opts ...dataframe.Option) *dataframe.Session {
	tb.Helper()
	cfg := config.NewConfig()
	cfg.MetricsCollection = true
	base := []dataframe.Option{
		dataframe.WithConfig(cfg),
		dataframe.WithLogger(DiscardLogger()),
		dataframe.WithMetrics(monitoring.NewMetricsCollector(true)),
	}
	return dataframe.NewSession(cluster, cluster, append(base, opts...)...)
}
