package llm

import (
	"context"
	"encoding/json"
	"iter"
	"sync"
)

// mockChunkSize is the byte length of each streamed delta.
const mockChunkSize = 16

// MockResponse is a canned response for the MockProvider.
type MockResponse struct {
	Content json.RawMessage
	Usage   Usage
	Err     error
}

// MockProvider is a deterministic Provider for testing.
// It returns canned responses in FIFO order and records all requests.
type MockProvider struct {
	mu        sync.Mutex
	responses []MockResponse
	Calls     []Request
}

// NewMockProvider creates a MockProvider with the given canned responses.
func NewMockProvider(responses ...MockResponse) *MockProvider {
	return &MockProvider{responses: responses}
}

// Generate returns the next canned response or ErrProviderUnavailable if
// the queue is empty.
func (m *MockProvider) Generate(_ context.Context, req Request) (*Response, error) {
	return m.next(req)
}

// Stream pops the next canned response like Generate and yields its
// content in fixed-size deltas followed by the final event. A canned
// response with both Content and Err yields the content and then fails.
func (m *MockProvider) Stream(ctx context.Context, req Request) iter.Seq2[StreamEvent, error] {
	return func(yield func(StreamEvent, error) bool) {
		m.mu.Lock()
		m.Calls = append(m.Calls, req)
		var canned *MockResponse
		if len(m.responses) > 0 {
			canned = &m.responses[0]
			m.responses = m.responses[1:]
		}
		m.mu.Unlock()

		if canned == nil {
			yield(StreamEvent{}, &ErrProviderUnavailable{})
			return
		}

		text := string(canned.Content)
		for len(text) > 0 {
			if err := ctx.Err(); err != nil {
				yield(StreamEvent{}, err)
				return
			}
			n := min(mockChunkSize, len(text))
			if !yield(StreamEvent{Delta: text[:n]}, nil) {
				return
			}
			text = text[n:]
		}
		if canned.Err != nil {
			yield(StreamEvent{}, canned.Err)
			return
		}
		yield(StreamEvent{Done: true, Response: &Response{
			Content:    canned.Content,
			Usage:      canned.Usage,
			Model:      "mock",
			StopReason: "end",
		}}, nil)
	}
}

func (m *MockProvider) next(req Request) (*Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, req)

	if len(m.responses) == 0 {
		return nil, &ErrProviderUnavailable{Err: nil}
	}

	resp := m.responses[0]
	m.responses = m.responses[1:]

	if resp.Err != nil {
		return nil, resp.Err
	}

	return &Response{
		Content:    resp.Content,
		Usage:      resp.Usage,
		Model:      "mock",
		StopReason: "end",
	}, nil
}

// ModelID returns "mock".
func (m *MockProvider) ModelID() string {
	return "mock"
}

// AddResponse appends a canned response to the queue.
func (m *MockProvider) AddResponse(resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, resp)
}

// CallCount returns the number of Generate and Stream calls made.
func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// Requests returns a copy of the recorded requests.
func (m *MockProvider) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Request(nil), m.Calls...)
}

// Pending returns the number of canned responses not yet consumed.
func (m *MockProvider) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.responses)
}
