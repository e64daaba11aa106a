// Package generation talks to the text generation service behind the bot.
//
// The service is any llms.Model. The package turns a conversation history
// into a chat completion and exposes the three uses the bot has for it:
// free-form replies, rewriting an utterance as "<qty> <dish>" lines and
// restating a confirmation reply as order JSON.
package generation

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/tmc/langchaingo/llms"

	"github.com/xenking/sazon-bot/internal/domain/conversation"
)

// ServiceError reports a failed call to the generation service. The turn
// that issued it produces no response and must not advance.
type ServiceError struct {
	Op  string
	Err error
}

func (e *ServiceError) Error() string {
	return "generation " + e.Op + ": " + e.Err.Error()
}

func (e *ServiceError) Unwrap() error { return e.Err }

// Options tune a single completion.
type Options struct {
	Temperature float64
	MaxTokens   int
}

// Config configures a Service.
type Config struct {
	// Reply are the options of conversational replies.
	Reply Options
	// Timeout bounds every call. Zero means no bound other than ctx.
	Timeout time.Duration
}

// Service wraps an llms.Model.
type Service struct {
	model llms.Model
	cfg   Config
}

// New creates a Service over model.
func New(model llms.Model, cfg Config) *Service {
	if cfg.Reply.MaxTokens == 0 {
		cfg.Reply.MaxTokens = 1000
	}
	return &Service{model: model, cfg: cfg}
}

// Complete sends history to the model and returns the text of the first
// choice. Any transport, quota or empty-answer failure is a *ServiceError.
func (s *Service) Complete(ctx context.Context, history []conversation.Message, opts Options) (string, error) {
	return s.complete(ctx, "complete", toMessages(history), opts)
}

// Reply generates the assistant's next message for history.
func (s *Service) Reply(ctx context.Context, history []conversation.Message) (string, error) {
	return s.complete(ctx, "reply", toMessages(history), s.cfg.Reply)
}

// Normalize rewrites a free-form utterance as one "<qty> <dish>" line per
// item, converting quantities written as words into digits. It returns an
// empty string when the model finds no items.
func (s *Service) Normalize(ctx context.Context, utterance string) (string, error) {
	msgs := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, normalizeSystemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, normalizePrompt(utterance)),
	}
	out, err := s.complete(ctx, "normalize", msgs, Options{Temperature: 0, MaxTokens: 200})
	if err != nil {
		return "", err
	}
	if strings.EqualFold(strings.TrimSpace(out), noItemsAnswer) {
		return "", nil
	}
	return out, nil
}

// ExtractOrderJSON asks the model to restate a confirmation reply as a JSON
// object, or an empty object when the reply confirms nothing.
func (s *Service) ExtractOrderJSON(ctx context.Context, reply string) (string, error) {
	msgs := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, extractSystemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, extractPrompt(reply)),
	}
	return s.complete(ctx, "extract", msgs, Options{Temperature: 0, MaxTokens: 300})
}

func (s *Service) complete(ctx context.Context, op string, msgs []llms.MessageContent, opts Options) (string, error) {
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	resp, err := s.model.GenerateContent(ctx, msgs,
		llms.WithTemperature(opts.Temperature),
		llms.WithMaxTokens(opts.MaxTokens),
	)
	if err != nil {
		return "", &ServiceError{Op: op, Err: err}
	}
	if resp == nil || len(resp.Choices) == 0 || resp.Choices[0] == nil {
		return "", &ServiceError{Op: op, Err: errors.New("empty response")}
	}
	return strings.TrimSpace(resp.Choices[0].Content), nil
}

func toMessages(history []conversation.Message) []llms.MessageContent {
	msgs := make([]llms.MessageContent, 0, len(history))
	for _, m := range history {
		msgs = append(msgs, llms.TextParts(roleType(m.Role), m.Content))
	}
	return msgs
}

func roleType(r conversation.Role) llms.ChatMessageType {
	switch r {
	case conversation.RoleSystem:
		return llms.ChatMessageTypeSystem
	case conversation.RoleAssistant:
		return llms.ChatMessageTypeAI
	default:
		return llms.ChatMessageTypeHuman
	}
}
