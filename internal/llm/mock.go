package llm

import "context"

// MockClient is a test double for the Client interface.
type MockClient struct {
	Result *Result
	Err    error
	Calls  [][]Message // records conversations sent
}

// Complete records the call and returns the mock response.
func (m *MockClient) Complete(ctx context.Context, msgs []Message, opts Options) (*Result, error) {
	m.Calls = append(m.Calls, msgs)
	return m.Result, m.Err
}

// CompleteStream delivers the mock content as a single chunk.
func (m *MockClient) CompleteStream(ctx context.Context, msgs []Message, opts Options, onChunk func(string)) (*Result, error) {
	res, err := m.Complete(ctx, msgs, opts)
	if err != nil {
		return nil, err
	}
	if onChunk != nil {
		onChunk(res.Content)
	}
	return res, nil
}

// Models returns a fixed test model list.
func (m *MockClient) Models() []string { return []string{"mock-model"} }

// ValidateConfig always succeeds for the mock.
func (m *MockClient) ValidateConfig() error { return nil }

var _ Client = (*MockClient)(nil)
