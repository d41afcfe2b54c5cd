// ABOUTME: Conversation driver - the central layer for turn persistence
// ABOUTME: User messages are recorded before the model runs; history is the source of truth

package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/botforge/botforge/internal/llm"
	"github.com/botforge/botforge/internal/permission"
	"github.com/botforge/botforge/internal/store"
)

// ErrInvalidInput is returned for requests that fail validation
var ErrInvalidInput = errors.New("invalid input")

// DefaultSystemPrompt is used for sessions without a bot
const DefaultSystemPrompt = "You are a helpful assistant."

// Driver runs conversation turns: permission check, durable user message,
// streamed model call, and a single committed assistant message.
type Driver struct {
	store        store.Store
	resolver     *permission.Resolver
	streamer     llm.Streamer
	defaultModel string
	logger       *slog.Logger
}

// NewDriver creates a conversation driver
func NewDriver(s store.Store, r *permission.Resolver, streamer llm.Streamer, defaultModel string) *Driver {
	return &Driver{
		store:        s,
		resolver:     r,
		streamer:     streamer,
		defaultModel: defaultModel,
		logger:       slog.Default().With("component", "chat"),
	}
}

// SendRequest describes one conversation turn
type SendRequest struct {
	UserID    string
	SessionID string // empty starts a new session
	BotID     string // only honored when starting a new session
	Content   string
}

// SendResponse is the result of starting a turn. Stream delivers text
// fragments and exactly one terminal done or error event.
type SendResponse struct {
	SessionID     string
	UserMessageID string
	Stream        <-chan *llm.Event
}

// Send executes one turn.
//
// Key principle: record first, then act. The user message is saved BEFORE
// the model is invoked, so a record exists even when the upstream fails.
// The assistant message is committed only when the stream finishes cleanly.
func (d *Driver) Send(ctx context.Context, req *SendRequest) (*SendResponse, error) {
	if req.Content == "" {
		return nil, fmt.Errorf("%w: message is required", ErrInvalidInput)
	}

	session, err := d.ensureSession(ctx, req)
	if err != nil {
		return nil, err
	}

	// Re-check CHAT permission against the session's current bot on every
	// turn, so revocation and bot deletion take effect mid-session
	var bot *store.Bot
	if session.BotID != "" {
		if _, err := d.resolver.Require(ctx, req.UserID, session.BotID, permission.LevelChat); err != nil {
			return nil, err
		}
		bot, err = d.store.GetBot(ctx, session.BotID)
		if err != nil {
			return nil, err
		}
	}

	history, err := d.store.ListMessages(ctx, session.ID, store.MessageQuery{})
	if err != nil {
		return nil, fmt.Errorf("loading history: %w", err)
	}

	// Record user message first
	userMsg := &store.Message{
		ID:        uuid.New().String(),
		SessionID: session.ID,
		Role:      store.RoleUser,
		Content:   req.Content,
		CreatedAt: time.Now().UTC(),
	}
	if err := d.store.AppendMessage(ctx, userMsg); err != nil {
		return nil, fmt.Errorf("recording user message: %w", err)
	}

	d.logger.Debug("user message recorded",
		"session_id", session.ID,
		"message_id", userMsg.ID)

	// Default the title from the first user message
	if session.Title == "" && len(history) == 0 {
		title := DeriveTitle(req.Content)
		if err := d.store.SetSessionTitle(ctx, session.ID, title); err != nil {
			d.logger.Warn("failed to set session title", "session_id", session.ID, "error", err)
		}
	}

	modelName := d.defaultModel
	systemPrompt := DefaultSystemPrompt
	if bot != nil {
		modelName = bot.ModelName
		systemPrompt = bot.SystemPrompt
	}

	llmReq := &llm.Request{
		ModelName:    modelName,
		SystemPrompt: systemPrompt,
		History:      buildHistory(history, req.Content),
	}

	stream, err := d.streamer.Stream(ctx, llmReq)
	if err != nil {
		// User message is recorded; the turn itself failed upstream
		return nil, fmt.Errorf("starting generation: %w", err)
	}

	out := d.persistStream(ctx, session, modelName, req.UserID, stream)

	return &SendResponse{
		SessionID:     session.ID,
		UserMessageID: userMsg.ID,
		Stream:        out,
	}, nil
}

// ensureSession resolves an existing session or creates a new one.
// Foreign sessions are reported as not found, never forbidden.
func (d *Driver) ensureSession(ctx context.Context, req *SendRequest) (*store.Session, error) {
	if req.SessionID != "" {
		session, err := d.store.GetSession(ctx, req.SessionID)
		if err != nil {
			return nil, err
		}
		if session.UserID != req.UserID {
			return nil, store.ErrNotFound
		}
		return session, nil
	}

	// Starting a new session against a bot needs CHAT up front
	if req.BotID != "" {
		if _, err := d.resolver.Require(ctx, req.UserID, req.BotID, permission.LevelChat); err != nil {
			return nil, err
		}
	}

	now := time.Now().UTC()
	session := &store.Session{
		ID:        uuid.New().String(),
		UserID:    req.UserID,
		BotID:     req.BotID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := d.store.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}

	d.logger.Debug("session created", "session_id", session.ID, "bot_id", req.BotID)
	return session, nil
}

// buildHistory converts stored messages plus the new user content into
// the provider request history, oldest first.
func buildHistory(prior []*store.Message, content string) []llm.TurnMessage {
	history := make([]llm.TurnMessage, 0, len(prior)+1)
	for _, m := range prior {
		if m.Role != store.RoleUser && m.Role != store.RoleAssistant {
			continue
		}
		history = append(history, llm.TurnMessage{Role: m.Role, Content: m.Content})
	}
	return append(history, llm.TurnMessage{Role: store.RoleUser, Content: content})
}

// persistStream wraps the provider stream: fragments are accumulated here
// and forwarded to the caller. The assistant message is committed exactly
// once on a clean finish; a failed or cancelled turn commits nothing.
func (d *Driver) persistStream(ctx context.Context, session *store.Session, modelName, userID string, in <-chan *llm.Event) <-chan *llm.Event {
	out := make(chan *llm.Event, 16)

	go func() {
		defer close(out)

		var textBuffer string
		for ev := range in {
			switch ev.Type {
			case llm.EventText:
				textBuffer += ev.Text

			case llm.EventDone:
				d.commitTurn(session, modelName, userID, textBuffer, ev.Usage)

			case llm.EventError:
				// No partial assistant message survives a failed turn
				d.logger.Warn("turn failed",
					"session_id", session.ID,
					"error", ev.Err)
			}

			// Forward with backpressure: delivery waits on the consumer
			// and never drops. Accumulation and commit already happened
			// above, so a stalled consumer only delays its own events.
			select {
			case out <- ev:
			case <-ctx.Done():
				d.logger.Debug("caller gone during streaming", "session_id", session.ID)
				// Drain so the provider goroutine can finish; a commit that
				// already ran above stays committed
				go func() {
					for range in {
					}
				}()
				return
			}
		}
	}()

	return out
}

// commitTurn persists the assistant message and usage with a detached
// timeout context, so caller cancellation after done cannot lose the commit.
func (d *Driver) commitTurn(session *store.Session, modelName, userID, content string, usage *llm.Usage) {
	saveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if content != "" {
		msg := &store.Message{
			ID:        uuid.New().String(),
			SessionID: session.ID,
			Role:      store.RoleAssistant,
			Content:   content,
			CreatedAt: time.Now().UTC(),
		}
		if usage != nil {
			tc := usage.CompletionTokens
			msg.TokenCount = &tc
		}
		if err := d.store.AppendMessage(saveCtx, msg); err != nil {
			d.logger.Error("failed to commit assistant message",
				"session_id", session.ID,
				"error", err)
			return
		}
		d.logger.Debug("assistant message committed",
			"session_id", session.ID,
			"message_id", msg.ID)
	}

	// Usage accounting is best effort - failures never fail the turn
	if usage != nil {
		err := d.store.SaveUsage(saveCtx, &store.UsageLog{
			ID:               uuid.New().String(),
			UserID:           userID,
			SessionID:        session.ID,
			BotID:            session.BotID,
			ModelName:        modelName,
			PromptTokens:     usage.PromptTokens,
			CompletionTokens: usage.CompletionTokens,
			TotalTokens:      usage.TotalTokens,
			CreatedAt:        time.Now().UTC(),
		})
		if err != nil {
			d.logger.Error("failed to save usage",
				"session_id", session.ID,
				"error", err)
		}
	}
}
