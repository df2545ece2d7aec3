// Package gemini adapts the Google GenAI SDK to the agent chat interfaces.
package gemini

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"

	"github.com/airquery/airquery/internal/agent"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-2.5-flash-lite"

// ErrMissingAPIKey is returned by NewFactory without an API key.
var ErrMissingAPIKey = errors.New("gemini api key is required")

// Config holds configuration for the Gemini factory.
type Config struct {
	APIKey string
	Model  string
}

// Factory opens Gemini chats.
type Factory struct {
	client *genai.Client
	model  string
}

var _ agent.ChatFactory = (*Factory)(nil)

// NewFactory creates a factory backed by the Gemini API.
func NewFactory(ctx context.Context, cfg Config) (*Factory, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	return &Factory{client: client, model: model}, nil
}

// Model returns the configured model name.
func (f *Factory) Model() string {
	return f.model
}

// NewChat opens a chat offering tools to the model.
func (f *Factory) NewChat(ctx context.Context, tools []agent.ToolSpec) (agent.Chat, error) {
	config := &genai.GenerateContentConfig{
		Tools: []*genai.Tool{{FunctionDeclarations: Declarations(tools)}},
	}

	chat, err := f.client.Chats.Create(ctx, f.model, config, nil)
	if err != nil {
		return nil, err
	}
	return &Chat{chat: chat}, nil
}

// Declarations converts tool specs into function declarations with an
// object schema of string properties.
func Declarations(tools []agent.ToolSpec) []*genai.FunctionDeclaration {
	decls := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, t := range tools {
		schema := &genai.Schema{
			Type:       genai.TypeObject,
			Properties: make(map[string]*genai.Schema, len(t.Params)),
		}
		for _, p := range t.Params {
			schema.Properties[p.Name] = &genai.Schema{
				Type:        genai.TypeString,
				Description: p.Description,
			}
			if p.Required {
				schema.Required = append(schema.Required, p.Name)
			}
		}
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  schema,
		})
	}
	return decls
}

// Chat is one Gemini conversation.
type Chat struct {
	chat *genai.Chat
}

// Send sends a user prompt.
func (c *Chat) Send(ctx context.Context, prompt string) (*agent.Reply, error) {
	resp, err := c.chat.SendMessage(ctx, genai.Part{Text: prompt})
	if err != nil {
		return nil, err
	}
	return ToReply(resp), nil
}

// SendFunctionResponses returns tool results to the model.
func (c *Chat) SendFunctionResponses(ctx context.Context, responses []agent.FunctionResponse) (*agent.Reply, error) {
	parts := make([]genai.Part, 0, len(responses))
	for _, r := range responses {
		parts = append(parts, genai.Part{FunctionResponse: &genai.FunctionResponse{
			ID:       r.ID,
			Name:     r.Name,
			Response: r.Response,
		}})
	}

	resp, err := c.chat.SendMessage(ctx, parts...)
	if err != nil {
		return nil, err
	}
	return ToReply(resp), nil
}

// ToReply extracts tool calls, or the text when there are none.
func ToReply(resp *genai.GenerateContentResponse) *agent.Reply {
	reply := &agent.Reply{}
	if resp == nil {
		return reply
	}

	for _, fc := range resp.FunctionCalls() {
		reply.Calls = append(reply.Calls, agent.FunctionCall{
			ID:   fc.ID,
			Name: fc.Name,
			Args: fc.Args,
		})
	}
	if len(reply.Calls) == 0 {
		reply.Text = resp.Text()
	}
	return reply
}
