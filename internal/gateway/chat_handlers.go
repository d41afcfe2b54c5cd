// ABOUTME: Streaming chat handler - one SSE stream per conversation turn
// ABOUTME: Persistence happens in the conversation driver, not here

package gateway

import (
	"context"
	"net/http"

	"github.com/botforge/botforge/internal/auth"
	"github.com/botforge/botforge/internal/chat"
	"github.com/botforge/botforge/internal/llm"
)

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
	BotID     string `json:"bot_id"`
}

func (g *Gateway) handleChat(w http.ResponseWriter, r *http.Request) {
	authCtx := auth.MustFromContext(r.Context())

	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Check streaming support before sending (fail fast)
	flusher, ok := w.(http.Flusher)
	if !ok {
		g.logger.Error("streaming not supported")
		g.sendJSONError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	resp, err := g.driver.Send(r.Context(), &chat.SendRequest{
		UserID:    authCtx.UserID,
		SessionID: req.SessionID,
		BotID:     req.BotID,
		Content:   req.Message,
	})
	if err != nil {
		g.sendServiceError(w, err)
		return
	}

	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	// Initial "started" event so the client can track the session
	g.writeSSEEvent(w, "started", map[string]string{
		"session_id":      resp.SessionID,
		"user_message_id": resp.UserMessageID,
	})
	flusher.Flush()

	g.streamEvents(r.Context(), w, flusher, resp.SessionID, resp.Stream)
}

// streamEvents reads from the driver stream and writes SSE events.
// The driver keeps accumulating and committing even if we return early.
func (g *Gateway) streamEvents(ctx context.Context, w http.ResponseWriter, flusher http.Flusher, sessionID string, stream <-chan *llm.Event) {
	for {
		select {
		case <-ctx.Done():
			g.writeSSEEvent(w, "error", map[string]string{"error": "request cancelled"})
			flusher.Flush()
			return

		case ev, ok := <-stream:
			if !ok {
				return
			}

			switch ev.Type {
			case llm.EventText:
				g.writeSSEEvent(w, "text", map[string]string{"text": ev.Text})

			case llm.EventDone:
				data := map[string]interface{}{"session_id": sessionID}
				if ev.Usage != nil {
					data["usage"] = map[string]int{
						"prompt_tokens":     ev.Usage.PromptTokens,
						"completion_tokens": ev.Usage.CompletionTokens,
						"total_tokens":      ev.Usage.TotalTokens,
					}
				}
				g.writeSSEEvent(w, "done", data)
				flusher.Flush()
				return

			case llm.EventError:
				msg := "generation failed"
				if ev.Err != nil {
					msg = ev.Err.Error()
				}
				g.writeSSEEvent(w, "error", map[string]string{"error": msg})
				flusher.Flush()
				return
			}
			flusher.Flush()
		}
	}
}
