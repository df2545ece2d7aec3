// Package agent answers free-text questions by letting a hosted language
// model call the air quality lookups as tools.
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// DefaultMaxToolRounds bounds the tool-call exchanges in one answer.
const DefaultMaxToolRounds = 5

// Predefined errors for agent operations.
var (
	ErrEmptyPrompt       = errors.New("prompt is required")
	ErrTooManyToolRounds = errors.New("model kept calling tools without answering")
	ErrModel             = errors.New("model request failed")
)

// FunctionCall is a tool invocation requested by the model.
type FunctionCall struct {
	ID   string
	Name string
	Args map[string]any
}

// FunctionResponse is the result of a FunctionCall sent back to the model.
type FunctionResponse struct {
	ID       string
	Name     string
	Response map[string]any
}

// Reply is one model turn: either text or tool calls.
type Reply struct {
	Text  string
	Calls []FunctionCall
}

// Chat is a single conversation with the model.
type Chat interface {
	Send(ctx context.Context, prompt string) (*Reply, error)
	SendFunctionResponses(ctx context.Context, responses []FunctionResponse) (*Reply, error)
}

// ChatFactory opens new conversations with the given tools.
type ChatFactory interface {
	NewChat(ctx context.Context, tools []ToolSpec) (Chat, error)
}

// Config holds configuration for the agent.
type Config struct {
	// Factory opens model conversations (required).
	Factory ChatFactory

	// Tools are offered to the model (required).
	Tools *Registry

	// Logger for agent operations.
	Logger zerolog.Logger

	// MaxToolRounds bounds tool exchanges per answer (default: DefaultMaxToolRounds).
	MaxToolRounds int
}

// Agent answers prompts. Each Ask runs in its own Session, so no state is
// shared between prompts.
type Agent struct {
	factory       ChatFactory
	tools         *Registry
	logger        zerolog.Logger
	maxToolRounds int
}

// New creates a new agent.
func New(cfg Config) *Agent {
	rounds := cfg.MaxToolRounds
	if rounds <= 0 {
		rounds = DefaultMaxToolRounds
	}
	return &Agent{
		factory:       cfg.Factory,
		tools:         cfg.Tools,
		logger:        cfg.Logger,
		maxToolRounds: rounds,
	}
}

// Ask answers prompt in a fresh session.
func (a *Agent) Ask(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", ErrEmptyPrompt
	}

	session, err := a.NewSession(ctx)
	if err != nil {
		return "", err
	}
	return session.Ask(ctx, prompt)
}

// NewSession opens a conversation with the model.
func (a *Agent) NewSession(ctx context.Context) (*Session, error) {
	chat, err := a.factory.NewChat(ctx, a.tools.Specs())
	if err != nil {
		return nil, fmt.Errorf("%w: open chat: %w", ErrModel, err)
	}
	return &Session{
		chat:      chat,
		tools:     a.tools,
		logger:    a.logger,
		maxRounds: a.maxToolRounds,
	}, nil
}

// Session owns one model conversation.
type Session struct {
	chat      Chat
	tools     *Registry
	logger    zerolog.Logger
	maxRounds int
}

// Ask sends prompt and executes tool calls until the model answers with text.
func (s *Session) Ask(ctx context.Context, prompt string) (string, error) {
	s.logger.Debug().Int("prompt_length", len(prompt)).Msg("sending prompt")

	reply, err := s.chat.Send(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrModel, err)
	}

	for round := 0; len(reply.Calls) > 0; round++ {
		if round >= s.maxRounds {
			return "", ErrTooManyToolRounds
		}

		responses := make([]FunctionResponse, 0, len(reply.Calls))
		for _, call := range reply.Calls {
			s.logger.Debug().
				Str("tool", call.Name).
				Interface("args", call.Args).
				Msg("executing tool call")

			responses = append(responses, FunctionResponse{
				ID:       call.ID,
				Name:     call.Name,
				Response: s.tools.Call(ctx, call.Name, call.Args),
			})
		}

		reply, err = s.chat.SendFunctionResponses(ctx, responses)
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrModel, err)
		}
	}

	return reply.Text, nil
}
