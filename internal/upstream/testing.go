package upstream

import (
	"context"
	"sync"
)

// StubClient returns a fixed result for every call. Useful in tests and
// as a building block for scripted behaviors.
type StubClient struct {
	mu     sync.Mutex
	Result Result
	Err    error
	calls  []Request
}

func (s *StubClient) Invoke(ctx context.Context, req Request) (Result, error) {
	s.mu.Lock()
	s.calls = append(s.calls, req)
	s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if s.Err != nil {
		return Result{}, s.Err
	}
	return s.Result, nil
}

// Calls returns a copy of the requests seen so far.
func (s *StubClient) Calls() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.calls))
	copy(out, s.calls)
	return out
}

var _ Client = (*StubClient)(nil)

// FlakyClient fails the first FailCount calls with Err, then delegates to
// Next. It exercises the retry path without a real upstream.
type FlakyClient struct {
	mu        sync.Mutex
	FailCount int
	Err       error
	Next      Client
	attempts  int
}

func (f *FlakyClient) Invoke(ctx context.Context, req Request) (Result, error) {
	f.mu.Lock()
	f.attempts++
	n := f.attempts
	f.mu.Unlock()
	if n <= f.FailCount {
		return Result{}, f.Err
	}
	return f.Next.Invoke(ctx, req)
}

// Attempts returns the total number of calls made.
func (f *FlakyClient) Attempts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attempts
}

var _ Client = (*FlakyClient)(nil)

// FuncClient adapts a function to the Client interface.
type FuncClient func(ctx context.Context, req Request) (Result, error)

func (f FuncClient) Invoke(ctx context.Context, req Request) (Result, error) {
	return f(ctx, req)
}

var _ Client = FuncClient(nil)
