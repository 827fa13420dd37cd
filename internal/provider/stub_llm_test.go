package provider

import (
	"context"
	"errors"

	"github.com/tmc/langchaingo/llms"
)

// stubLLM is an llms.Model that returns a fixed response with usage info and
// records the call options it was invoked with.
type stubLLM struct {
	text    string
	info    map[string]any
	chunks  []string
	err     error
	empty   bool
	calls   int
	options llms.CallOptions
	prompt  string
}

func (s *stubLLM) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	s.calls++
	s.options = llms.CallOptions{}
	for _, opt := range options {
		opt(&s.options)
	}
	if len(messages) > 0 && len(messages[0].Parts) > 0 {
		if part, ok := messages[0].Parts[0].(llms.TextContent); ok {
			s.prompt = part.Text
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	if s.empty {
		return &llms.ContentResponse{}, nil
	}
	if s.options.StreamingFunc != nil {
		for _, chunk := range s.chunks {
			if err := s.options.StreamingFunc(ctx, []byte(chunk)); err != nil {
				return nil, err
			}
		}
	}
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: s.text, GenerationInfo: s.info}},
	}, nil
}

func (s *stubLLM) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return "", errors.New("not implemented")
}
