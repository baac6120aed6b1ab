package dataframe

import (
	"context"
	"sync"

	"github.com/hashicorp/go-multierror"
)

// Releaser is anything holding cluster resources until released: frames and
// group-by accumulators.
type Releaser interface {
	Release(ctx context.Context) error
}

// Scope tracks handles created during a unit of work and releases them
// together.
//
// Use a Scope when many short-lived frames are built in a loop or when the
// lifetime of intermediate results is awkward to express with defer. For a
// handful of frames, prefer a deferred Release on each.
//
// Example:
//
//	err := sess.WithScope(ctx, func(scope *dataframe.Scope) error {
//		sum := scope.Frame(a.Add(b)).Sum()
//		v, err := scope.Frame(sum).Float(ctx)
//		...
//	})
//	// every tracked frame is released here
type Scope struct {
	resources []Releaser
	mu        sync.Mutex
}

// NewScope creates an empty scope.
func NewScope() *Scope {
	return &Scope{resources: make([]Releaser, 0)}
}

// Track adds r to the scope.
func (s *Scope) Track(r Releaser) {
	if r == nil {
		return
	}
	s.mu.Lock()
	s.resources = append(s.resources, r)
	s.mu.Unlock()
}

// Frame tracks f and returns it, for use inline in an expression.
func (s *Scope) Frame(f *Frame) *Frame {
	if f != nil {
		s.Track(f)
	}
	return f
}

// Count returns the number of tracked resources.
func (s *Scope) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.resources)
}

// ReleaseAll releases tracked resources in reverse order of tracking and
// clears the scope. Handles already released by the caller are skipped.
func (s *Scope) ReleaseAll(ctx context.Context) error {
	s.mu.Lock()
	resources := s.resources
	s.resources = s.resources[:0:0]
	s.mu.Unlock()

	var result *multierror.Error
	for i := len(resources) - 1; i >= 0; i-- {
		if f, ok := resources[i].(*Frame); ok && f.IsReleased() {
			continue
		}
		if err := resources[i].Release(ctx); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}
