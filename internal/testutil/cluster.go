package testutil

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"
	"sync"

	"github.com/paveg/rapids/internal/remote"
)

// Response scripts what the fake cluster answers for matching expressions.
type Response struct {
	Rows    int64
	Columns []string
	// Scalar is returned when the resulting frame is flattened, or directly
	// for expressions that are not frame assignments.
	Scalar remote.Value
	// CSV is served by Download; when empty a header-only CSV is generated.
	CSV string
	// Error makes the evaluator reject the expression.
	Error string
}

type rule struct {
	substr string
	resp   Response
}

type fakeFrame struct {
	expr string
	resp Response
}

// FakeCluster is an in-memory stand-in for the cluster. It records every
// submission and delete so tests can assert on network traffic, and it
// answers describe, flatten and download calls from scripted responses.
//
// Expressions of the form (tmp= key body) create a frame under key whose
// shape comes from the most recent rule whose substring occurs in body, or
// from the default shape.
type FakeCluster struct {
	mu sync.Mutex

	rules        []rule
	defaultShape Response
	frames       map[string]*fakeFrame

	submitted []string
	deleted   []string
	described []string

	deleteErr error
	submitErr error
}

// NewFakeCluster returns an empty cluster whose default frame is 1x1.
func NewFakeCluster() *FakeCluster {
	return &FakeCluster{
		defaultShape: Response{Rows: 1, Columns: []string{"C1"}, Scalar: remote.NumberValue(0)},
		frames:       make(map[string]*fakeFrame),
	}
}

// On registers resp for expressions containing substr. Later rules win.
func (c *FakeCluster) On(substr string, resp Response) *FakeCluster {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rules = append(c.rules, rule{substr: substr, resp: resp})
	return c
}

// SetDefault changes the shape of frames no rule matches.
func (c *FakeCluster) SetDefault(resp Response) *FakeCluster {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.defaultShape = resp
	return c
}

// AddFrame stores a frame under key as if it already existed.
func (c *FakeCluster) AddFrame(key string, resp Response) *FakeCluster {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames[key] = &fakeFrame{resp: resp}
	return c
}

// FailDeletes makes every Delete return err until cleared with nil.
func (c *FakeCluster) FailDeletes(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deleteErr = err
}

// FailSubmits makes every Submit return err until cleared with nil.
func (c *FakeCluster) FailSubmits(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.submitErr = err
}

func (c *FakeCluster) match(text string) Response {
	for i := len(c.rules) - 1; i >= 0; i-- {
		if strings.Contains(text, c.rules[i].substr) {
			return c.rules[i].resp
		}
	}
	return c.defaultShape
}

var (
	tmpAssign = regexp.MustCompile(`^\(tmp= (\S+) (.*)\)$`)
	flatten   = regexp.MustCompile(`^\(flatten (\S+)\)$`)
	rename    = regexp.MustCompile(`^\(, \(gput "([^"]*)" (\S+)\) \(removeframe \S+\)\)$`)
)

// Submit implements remote.Transport.
func (c *FakeCluster) Submit(_ context.Context, ast string) (*remote.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.submitted = append(c.submitted, ast)
	if c.submitErr != nil {
		return nil, c.submitErr
	}

	if m := tmpAssign.FindStringSubmatch(ast); m != nil {
		key, body := m[1], m[2]
		resp := c.match(body)
		if resp.Error != "" {
			return &remote.Result{Error: resp.Error}, nil
		}
		c.frames[key] = &fakeFrame{expr: body, resp: resp}
		return &remote.Result{Key: key, Rows: resp.Rows, Cols: len(resp.Columns)}, nil
	}

	if m := flatten.FindStringSubmatch(ast); m != nil {
		fr, ok := c.frames[m[1]]
		if !ok {
			return &remote.Result{Error: fmt.Sprintf("no frame %s", m[1])}, nil
		}
		return &remote.Result{Scalar: fr.resp.Scalar}, nil
	}

	if m := rename.FindStringSubmatch(ast); m != nil {
		fr, ok := c.frames[m[2]]
		if !ok {
			return &remote.Result{Error: fmt.Sprintf("no frame %s", m[2])}, nil
		}
		delete(c.frames, m[2])
		c.frames[m[1]] = fr
		return &remote.Result{Key: m[1], Rows: fr.resp.Rows, Cols: len(fr.resp.Columns)}, nil
	}

	if ast == "(store_size)" {
		return &remote.Result{Scalar: remote.NumberValue(float64(len(c.frames)))}, nil
	}

	resp := c.match(ast)
	return &remote.Result{Scalar: resp.Scalar, Error: resp.Error}, nil
}

// Delete implements remote.Transport.
func (c *FakeCluster) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.deleted = append(c.deleted, key)
	if c.deleteErr != nil {
		return c.deleteErr
	}
	if _, ok := c.frames[key]; !ok {
		return remote.ErrNotFound
	}
	delete(c.frames, key)
	return nil
}

// Describe implements remote.Describer.
func (c *FakeCluster) Describe(_ context.Context, key string) (*remote.Description, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.described = append(c.described, key)
	fr, ok := c.frames[key]
	if !ok {
		return nil, remote.ErrNotFound
	}
	return &remote.Description{
		Key:     key,
		Rows:    fr.resp.Rows,
		Columns: append([]string(nil), fr.resp.Columns...),
	}, nil
}

// Download implements remote.Downloader.
func (c *FakeCluster) Download(_ context.Context, key string) (io.ReadCloser, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fr, ok := c.frames[key]
	if !ok {
		return nil, remote.ErrNotFound
	}
	data := fr.resp.CSV
	if data == "" {
		data = strings.Join(fr.resp.Columns, ",") + "\n"
	}
	return io.NopCloser(strings.NewReader(data)), nil
}

// CreateFrame implements remote.FrameCreator with columns named C1..Cn.
func (c *FakeCluster) CreateFrame(_ context.Context, opts remote.CreateFrameOptions) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cols := make([]string, opts.Cols)
	for i := range cols {
		cols[i] = fmt.Sprintf("C%d", i+1)
	}
	c.frames[opts.Dest] = &fakeFrame{resp: Response{Rows: opts.Rows, Columns: cols}}
	return opts.Dest, nil
}

// Submitted returns every submitted expression in order.
func (c *FakeCluster) Submitted() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.submitted...)
}

// Deleted returns every key passed to Delete in order.
func (c *FakeCluster) Deleted() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.deleted...)
}

// Described returns every key passed to Describe in order.
func (c *FakeCluster) Described() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.described...)
}

// Has reports whether the cluster holds key.
func (c *FakeCluster) Has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.frames[key]
	return ok
}

// Expression returns the body that created key, or "".
func (c *FakeCluster) Expression(key string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if fr, ok := c.frames[key]; ok {
		return fr.expr
	}
	return ""
}

// Calls returns the number of submissions plus deletes: every round trip
// that can change cluster state.
func (c *FakeCluster) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.submitted) + len(c.deleted)
}

// Reset forgets recorded traffic but keeps frames and rules.
func (c *FakeCluster) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.submitted = nil
	c.deleted = nil
	c.described = nil
}
