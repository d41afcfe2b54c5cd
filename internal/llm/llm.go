// ABOUTME: Streamer interface and event types for model providers
// ABOUTME: The conversation layer depends on this seam, never on a concrete provider

package llm

import "context"

// EventType identifies what a stream event carries
type EventType string

const (
	EventText  EventType = "text"  // incremental content fragment
	EventDone  EventType = "done"  // terminal success, may carry usage
	EventError EventType = "error" // terminal failure
)

// Usage reports token consumption for one completed generation
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Event is one item on a generation stream. Exactly one terminal event
// (done or error) ends every stream.
type Event struct {
	Type  EventType
	Text  string
	Usage *Usage // set on done when the provider reports it
	Err   error  // set on error
}

// TurnMessage is one prior exchange entry sent as context
type TurnMessage struct {
	Role    string // user | assistant
	Content string
}

// Request describes one generation call
type Request struct {
	ModelName    string
	SystemPrompt string
	History      []TurnMessage // oldest first, ends with the new user message
}

// Streamer produces a stream of events for a generation request.
// The returned channel is closed after the terminal event.
type Streamer interface {
	Stream(ctx context.Context, req *Request) (<-chan *Event, error)
}
