package recommend

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/liber-ai/sommelier/pkg/anthropic"
)

// scriptedReply is one canned model response for the mock client.
type scriptedReply struct {
	text string
	err  error
}

// mockClient returns scripted replies in order and records every request.
type mockClient struct {
	replies  []scriptedReply
	requests []anthropic.MessageRequest
}

func (m *mockClient) CreateMessage(_ context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	m.requests = append(m.requests, req)

	if len(m.replies) == 0 {
		return nil, eris.New("mock: no scripted reply left")
	}
	reply := m.replies[0]
	m.replies = m.replies[1:]

	if reply.err != nil {
		return nil, reply.err
	}
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: reply.text}},
	}, nil
}
