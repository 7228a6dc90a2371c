package client

import (
	"context"
	"fmt"
	"sync"
)

// FakeReply is one scripted response.
type FakeReply struct {
	Text         string
	Err          error
	InputTokens  int
	OutputTokens int
}

// FakeClient returns scripted replies per stage for offline runs and tests.
// Each stage replays its queue in order and repeats the last reply once the
// queue is exhausted.
type FakeClient struct {
	model string

	mu      sync.Mutex
	replies map[string][]FakeReply
	next    map[string]int
	calls   []Request
}

// NewFakeClient creates an empty fake.
func NewFakeClient(model string) *FakeClient {
	if model == "" {
		model = "fake-model"
	}
	return &FakeClient{
		model:   model,
		replies: make(map[string][]FakeReply),
		next:    make(map[string]int),
	}
}

// On queues replies for a stage.
func (f *FakeClient) On(stage string, replies ...FakeReply) *FakeClient {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies[stage] = append(f.replies[stage], replies...)
	return f
}

// Provider returns "fake".
func (f *FakeClient) Provider() string { return "fake" }

// Model returns the model name.
func (f *FakeClient) Model() string { return f.model }

// Close is a no-op.
func (f *FakeClient) Close() error { return nil }

// Generate returns the next scripted reply for req.Stage.
func (f *FakeClient) Generate(ctx context.Context, req *Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	f.calls = append(f.calls, *req)
	queue := f.replies[req.Stage]
	if len(queue) == 0 {
		f.mu.Unlock()
		return nil, fmt.Errorf("fake client: no reply scripted for stage %q", req.Stage)
	}
	i := f.next[req.Stage]
	if i >= len(queue) {
		i = len(queue) - 1
	}
	f.next[req.Stage] = i + 1
	reply := queue[i]
	f.mu.Unlock()

	if reply.Err != nil {
		return nil, reply.Err
	}
	out := &Response{
		Text:         reply.Text,
		Model:        f.model,
		InputTokens:  reply.InputTokens,
		OutputTokens: reply.OutputTokens,
	}
	fillUsage(req, out)
	return out, nil
}

// Calls returns a copy of every request received so far.
func (f *FakeClient) Calls() []Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Request, len(f.calls))
	copy(out, f.calls)
	return out
}

// CallsFor counts requests made for a stage.
func (f *FakeClient) CallsFor(stage string) int {
	n := 0
	for _, c := range f.Calls() {
		if c.Stage == stage {
			n++
		}
	}
	return n
}
