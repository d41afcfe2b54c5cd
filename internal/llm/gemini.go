// ABOUTME: Gemini implementation of the Streamer interface
// ABOUTME: Wraps generative-ai-go streaming into the provider-neutral event channel

package llm

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// GeminiStreamer implements Streamer against the Gemini API
type GeminiStreamer struct {
	client *genai.Client
	logger *slog.Logger
}

// NewGeminiStreamer creates a Gemini-backed streamer
func NewGeminiStreamer(ctx context.Context, apiKey string) (*GeminiStreamer, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}
	return &GeminiStreamer{
		client: client,
		logger: slog.Default().With("component", "llm"),
	}, nil
}

// Close releases the underlying API client
func (g *GeminiStreamer) Close() error {
	return g.client.Close()
}

// Stream runs one generation and emits events as fragments arrive.
// The last history entry is sent as the new message; everything before
// it becomes chat history.
func (g *GeminiStreamer) Stream(ctx context.Context, req *Request) (<-chan *Event, error) {
	if len(req.History) == 0 {
		return nil, fmt.Errorf("empty history")
	}

	model := g.client.GenerativeModel(req.ModelName)
	if req.SystemPrompt != "" {
		model.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(req.SystemPrompt)},
		}
	}

	cs := model.StartChat()
	prior := req.History[:len(req.History)-1]
	cs.History = make([]*genai.Content, 0, len(prior))
	for _, m := range prior {
		role := "user"
		if m.Role == "assistant" {
			role = "model"
		}
		cs.History = append(cs.History, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(m.Content)},
		})
	}

	last := req.History[len(req.History)-1]
	iter := cs.SendMessageStream(ctx, genai.Text(last.Content))

	out := make(chan *Event, 16)
	go func() {
		defer close(out)

		var usage *Usage
		for {
			resp, err := iter.Next()
			if err == iterator.Done {
				out <- &Event{Type: EventDone, Usage: usage}
				return
			}
			if err != nil {
				g.logger.Error("gemini stream failed", "model", req.ModelName, "error", err)
				out <- &Event{Type: EventError, Err: fmt.Errorf("gemini stream: %w", err)}
				return
			}

			if resp.UsageMetadata != nil {
				usage = &Usage{
					PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
					CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
					TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
				}
			}

			for _, cand := range resp.Candidates {
				if cand.Content == nil {
					continue
				}
				for _, part := range cand.Content.Parts {
					if text, ok := part.(genai.Text); ok && text != "" {
						out <- &Event{Type: EventText, Text: string(text)}
					}
				}
			}
		}
	}()

	return out, nil
}

var _ Streamer = (*GeminiStreamer)(nil)
