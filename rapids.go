// Package rapids is a client for a remote columnar compute cluster.
// Frames are lazy handles to cluster-side data; operations on them build
// prefix expressions that the cluster evaluates on demand.
//
// This package is the public API. Everything else lives under internal/.
package rapids

import (
	"context"
	"log/slog"

	"github.com/paveg/rapids/internal/config"
	"github.com/paveg/rapids/internal/dataframe"
	"github.com/paveg/rapids/internal/errors"
	rapidsio "github.com/paveg/rapids/internal/io"
	"github.com/paveg/rapids/internal/monitoring"
	"github.com/paveg/rapids/internal/remote"
	"github.com/paveg/rapids/internal/rest"
)

type (
	// Frame is a handle to a cluster-side frame or a pending expression.
	Frame = dataframe.Frame
	// GroupBy accumulates aggregates over grouping columns.
	GroupBy = dataframe.GroupBy
	// Scope releases every handle it tracks in one call.
	Scope = dataframe.Scope
	// Selector picks columns by name, index or a sequence of both.
	Selector = dataframe.Selector
	// ByName selects a column by name.
	ByName = dataframe.ByName
	// ByIndex selects a column by position.
	ByIndex = dataframe.ByIndex
	// AggOp is a group-by aggregate.
	AggOp = dataframe.AggOp
	// NAPolicy controls missing values within an aggregate.
	NAPolicy = dataframe.NAPolicy

	// Config holds connection and session settings.
	Config = config.Config
	// Value is a scalar result.
	Value = remote.Value
	// Result is the raw reply to an evaluated expression.
	Result = remote.Result
	// CreateFrameOptions parameterizes synthetic frame generation.
	CreateFrameOptions = remote.CreateFrameOptions
	// FrameError describes a failed frame operation.
	FrameError = errors.FrameError
	// MetricsSummary aggregates recorded round trips.
	MetricsSummary = monitoring.MetricsSummary

	// ParquetOptions controls Parquet export.
	ParquetOptions = rapidsio.ParquetOptions
	// JSONOptions controls JSON export.
	JSONOptions = rapidsio.JSONOptions
)

// Aggregates.
const (
	AggMin   = dataframe.AggMin
	AggMax   = dataframe.AggMax
	AggMean  = dataframe.AggMean
	AggCount = dataframe.AggCount
	AggSum   = dataframe.AggSum
	AggSd    = dataframe.AggSd
	AggVar   = dataframe.AggVar
	AggSS    = dataframe.AggSS
	AggMode  = dataframe.AggMode

	NAAll    = dataframe.NAAll
	NAIgnore = dataframe.NAIgnore
	NARemove = dataframe.NARemove
)

// JSON export layouts.
const (
	JSONArray = rapidsio.JSONArray
	JSONLines = rapidsio.JSONLines
)

// Names selects columns by name.
func Names(names ...string) dataframe.BySeq { return dataframe.Names(names...) }

// Indices selects columns by position.
func Indices(idx ...int) dataframe.BySeq { return dataframe.Indices(idx...) }

// NewScope returns an empty Scope.
func NewScope() *Scope { return dataframe.NewScope() }

// DefaultConfig returns the default configuration.
func DefaultConfig() Config { return config.NewConfig() }

// LoadConfig reads a JSON or YAML file and applies RAPIDS_* environment
// overrides on top.
func LoadConfig(path string) (Config, error) {
	cfg, err := config.LoadFromFile(path)
	if err != nil {
		return Config{}, err
	}
	return config.ApplyEnv(cfg), nil
}

// DefaultCreateFrameOptions returns the cluster's CreateFrame defaults.
func DefaultCreateFrameOptions() CreateFrameOptions { return remote.DefaultCreateFrameOptions() }

// DefaultParquetOptions returns snappy-compressed Parquet options.
func DefaultParquetOptions() ParquetOptions { return rapidsio.DefaultParquetOptions() }

// Client is a session bound to a REST connection.
type Client struct {
	*dataframe.Session
	conn *rest.Client
}

// ConnectOption configures Connect.
type ConnectOption func(*connectOptions)

type connectOptions struct {
	logger *slog.Logger
}

// WithLogger sets the logger shared by the session and the connection.
func WithLogger(logger *slog.Logger) ConnectOption {
	return func(o *connectOptions) { o.logger = logger }
}

// Connect validates cfg and opens a session against the cluster at cfg.URL.
// The cluster is not contacted until the first frame operation.
func Connect(cfg Config, opts ...ConnectOption) (*Client, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var o connectOptions
	for _, opt := range opts {
		opt(&o)
	}

	var restOpts []rest.Option
	sessOpts := []dataframe.Option{dataframe.WithConfig(cfg)}
	if o.logger != nil {
		restOpts = append(restOpts, rest.WithLogger(o.logger))
		sessOpts = append(sessOpts, dataframe.WithLogger(o.logger))
	}
	conn, err := rest.New(cfg, restOpts...)
	if err != nil {
		return nil, err
	}
	return &Client{
		Session: dataframe.NewSession(conn, conn, sessOpts...),
		conn:    conn,
	}, nil
}

// Close flushes deletions deferred while counting was off and closes idle
// connections.
func (c *Client) Close(ctx context.Context) error {
	defer c.conn.Close()
	if c.Counting() {
		return nil
	}
	return c.SetCounting(ctx, true)
}
