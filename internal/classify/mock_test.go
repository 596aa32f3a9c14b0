package classify

import (
	"context"
	"strings"
	"sync"

	"github.com/sells-group/leadmap/pkg/anthropic"
)

// fakeClient answers from a table keyed by a substring of the user prompt.
type fakeClient struct {
	mu      sync.Mutex
	replies map[string]string
	errs    map[string][]error
	calls   int
	systems []string
}

func (f *fakeClient) CreateMessage(_ context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.systems = append(f.systems, req.System[0].Text)

	prompt := req.Messages[0].Content
	for key, errs := range f.errs {
		if strings.Contains(prompt, key) && len(errs) > 0 {
			f.errs[key] = errs[1:]
			return nil, errs[0]
		}
	}
	for key, reply := range f.replies {
		if strings.Contains(prompt, key) {
			return &anthropic.MessageResponse{
				Content: []anthropic.ContentBlock{{Type: "text", Text: reply}},
				Usage:   anthropic.TokenUsage{InputTokens: 100, OutputTokens: 10},
			}, nil
		}
	}
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: `{"legitimate": false, "confidence": 0.5}`}},
	}, nil
}
