package dataframe

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/gofrs/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/paveg/rapids/internal/config"
	"github.com/paveg/rapids/internal/errors"
	"github.com/paveg/rapids/internal/expr"
	"github.com/paveg/rapids/internal/monitoring"
	"github.com/paveg/rapids/internal/remote"
)

// Session is one logical conversation with the cluster. It owns the
// collaborators every frame needs and the session-wide counting flag.
//
// A Session is not safe for concurrent use; the cluster evaluates one
// expression at a time per connection and the frames created here assume
// the same.
type Session struct {
	transport  remote.Transport
	describer  remote.Describer
	downloader remote.Downloader
	config     config.Config
	logger     *slog.Logger
	metrics    *monitoring.MetricsCollector

	counting bool
	dropped  []string

	// live indexes the states holding each remote key, so that Remove can
	// invalidate them.
	live map[string][]*frameState
}

// Option configures a Session.
type Option func(*Session)

// WithConfig sets the session configuration.
func WithConfig(cfg config.Config) Option {
	return func(s *Session) { s.config = cfg }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) { s.logger = logger }
}

// WithMetrics sets the collector that records round trips.
func WithMetrics(mc *monitoring.MetricsCollector) Option {
	return func(s *Session) { s.metrics = mc }
}

// WithDownloader sets the collaborator used by ToArrow and WriteParquet.
func WithDownloader(d remote.Downloader) Option {
	return func(s *Session) { s.downloader = d }
}

// NewSession creates a session over the given collaborators. If transport
// also implements remote.Downloader it is used for downloads unless
// WithDownloader overrides it.
func NewSession(transport remote.Transport, describer remote.Describer, opts ...Option) *Session {
	s := &Session{
		transport: transport,
		describer: describer,
		config:    config.NewConfig(),
		live:      make(map[string][]*frameState),
	}
	if d, ok := transport.(remote.Downloader); ok {
		s.downloader = d
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = newLogger(s.config.VerboseLogging)
	}
	if s.metrics == nil {
		s.metrics = monitoring.NewMetricsCollector(s.config.MetricsCollection)
	}
	s.counting = s.config.Counting
	return s
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// Config returns the session configuration.
func (s *Session) Config() config.Config {
	return s.config
}

// Metrics returns the round-trip collector.
func (s *Session) Metrics() *monitoring.MetricsCollector {
	return s.metrics
}

// Counting reports whether releasing the last handle deletes remote frames.
func (s *Session) Counting() bool {
	return s.counting
}

// SetCounting toggles deletion on last release. While counting is off,
// frames whose count drops to zero are remembered instead of deleted.
// Turning counting back on deletes everything remembered.
func (s *Session) SetCounting(ctx context.Context, on bool) error {
	if !on {
		s.counting = false
		return nil
	}
	s.counting = true
	return s.flushDropped(ctx)
}

// Dropped returns the keys waiting for deletion while counting is off.
func (s *Session) Dropped() []string {
	return append([]string(nil), s.dropped...)
}

func (s *Session) flushDropped(ctx context.Context) error {
	var result *multierror.Error
	pending := s.dropped
	s.dropped = nil
	for _, key := range pending {
		if err := s.deleteKey(ctx, key); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// GetFrame returns a handle to a frame that already exists on the cluster.
// The handle is kept: releasing it never deletes the frame.
func (s *Session) GetFrame(ctx context.Context, key string) (*Frame, error) {
	desc, err := s.describe(ctx, key)
	if err != nil {
		return nil, err
	}
	st := &frameState{
		sess:         s,
		key:          desc.Key,
		rows:         desc.Rows,
		cols:         desc.Columns,
		materialized: true,
		keep:         true,
		refs:         1,
	}
	if st.key == "" {
		st.key = key
	}
	s.track(st)
	return &Frame{st: st}, nil
}

// CreateFrame asks the cluster to synthesize a frame and returns a kept
// handle to it. The transport must implement remote.FrameCreator.
func (s *Session) CreateFrame(ctx context.Context, opts remote.CreateFrameOptions) (*Frame, error) {
	creator, ok := s.transport.(remote.FrameCreator)
	if !ok {
		return nil, fmt.Errorf("transport %T cannot create frames", s.transport)
	}
	if opts.Dest == "" {
		key, err := s.newKey()
		if err != nil {
			return nil, err
		}
		opts.Dest = key
	}

	var key string
	err := s.metrics.RecordCall("create_frame", opts.Dest, func() error {
		var err error
		key, err = creator.CreateFrame(ctx, opts)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("creating frame %s: %w", opts.Dest, err)
	}
	if key == "" {
		key = opts.Dest
	}
	return s.GetFrame(ctx, key)
}

// IfElse picks values from yes or no according to test, row by row.
// Each argument is a *Frame or a literal.
func (s *Session) IfElse(test, yes, no any) *Frame {
	return s.compose("IfElse", expr.OpIfElse, test, yes, no)
}

// Which returns the zero-based row indices where cond is true.
func (s *Session) Which(cond *Frame) *Frame {
	return s.compose("Which", expr.OpWhich, cond, false)
}

// StoreSize returns the number of keys held by the cluster.
func (s *Session) StoreSize(ctx context.Context) (int64, error) {
	res, err := s.submit(ctx, expr.New(expr.OpStoreSize))
	if err != nil {
		return 0, err
	}
	f, err := res.Scalar.Float()
	if err != nil {
		return 0, fmt.Errorf("store size: %w", err)
	}
	return int64(f), nil
}

// Remove deletes key from the cluster regardless of local handles. Every
// live handle to key is invalidated: terminal calls through it fail with
// ErrFrameRemoved, and releasing it sends nothing.
func (s *Session) Remove(ctx context.Context, key string) error {
	if key == "" {
		return errors.NewInvalidInputError("Remove", "key must not be empty")
	}
	if err := s.deleteKey(ctx, key); err != nil {
		return err
	}
	for _, st := range s.live[key] {
		st.removed = true
		st.released = true
		st.materialized = false
	}
	delete(s.live, key)
	return nil
}

func (s *Session) track(st *frameState) {
	s.live[st.key] = append(s.live[st.key], st)
}

func (s *Session) untrack(st *frameState, key string) {
	states := slices.DeleteFunc(s.live[key], func(x *frameState) bool { return x == st })
	if len(states) == 0 {
		delete(s.live, key)
		return
	}
	s.live[key] = states
}

// Eval submits a raw expression and returns the evaluator's result.
func (s *Session) Eval(ctx context.Context, ast string) (*remote.Result, error) {
	var res *remote.Result
	err := s.metrics.RecordCall("submit", "", func() error {
		var err error
		res, err = s.transport.Submit(ctx, ast)
		if err != nil {
			return fmt.Errorf("submitting expression: %w", err)
		}
		if res.Error != "" {
			return errors.NewRemoteError(ast, res.Error)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// WithScope runs fn with a scope whose tracked frames are released when fn
// returns, on every path.
func (s *Session) WithScope(ctx context.Context, fn func(*Scope) error) (err error) {
	scope := NewScope()
	defer func() {
		if rerr := scope.ReleaseAll(ctx); rerr != nil {
			err = multierror.Append(err, rerr).ErrorOrNil()
		}
	}()
	return fn(scope)
}

func (s *Session) submit(ctx context.Context, node *expr.Node) (*remote.Result, error) {
	start := time.Now()
	res, err := s.Eval(ctx, node.Serialize())
	if err != nil {
		s.logger.Debug("expression failed",
			slog.Uint64("fingerprint", node.Fingerprint()),
			slog.String("op", node.Op()),
			slog.Any("error", err))
		return nil, err
	}
	s.logger.Debug("expression evaluated",
		slog.Uint64("fingerprint", node.Fingerprint()),
		slog.String("op", node.Op()),
		slog.String("key", res.Key),
		slog.Duration("duration", time.Since(start)))
	return res, nil
}

func (s *Session) describe(ctx context.Context, key string) (*remote.Description, error) {
	var desc *remote.Description
	err := s.metrics.RecordCall("describe", key, func() error {
		var err error
		desc, err = s.describer.Describe(ctx, key)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("describing frame %s: %w", key, err)
	}
	return desc, nil
}

func (s *Session) download(ctx context.Context, key string) (io.ReadCloser, error) {
	if s.downloader == nil {
		return nil, fmt.Errorf("session has no downloader")
	}
	var rc io.ReadCloser
	err := s.metrics.RecordCall("download", key, func() error {
		var err error
		rc, err = s.downloader.Download(ctx, key)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("downloading frame %s: %w", key, err)
	}
	return rc, nil
}

// deleteFrame honours the counting flag; deleteKey does not.
func (s *Session) deleteFrame(ctx context.Context, key string) error {
	if !s.counting {
		s.logger.Debug("deferring delete", slog.String("key", key))
		s.dropped = append(s.dropped, key)
		return nil
	}
	return s.deleteKey(ctx, key)
}

func (s *Session) deleteKey(ctx context.Context, key string) error {
	err := s.metrics.RecordCall("delete", key, func() error {
		return s.transport.Delete(ctx, key)
	})
	if stderrors.Is(err, remote.ErrNotFound) {
		s.logger.Debug("key already gone", slog.String("key", key))
		return nil
	}
	if err != nil {
		return fmt.Errorf("deleting %s: %w", key, err)
	}
	s.logger.Debug("key deleted", slog.String("key", key))
	return nil
}

func (s *Session) newKey() (string, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return "", fmt.Errorf("generating key: %w", err)
	}
	return s.config.KeyPrefix + strings.ReplaceAll(id.String(), "-", ""), nil
}
