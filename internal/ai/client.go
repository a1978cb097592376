package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/atimics/matrixbot-sub000/internal/payload"
	"github.com/atimics/matrixbot-sub000/internal/tool"
)

// Decider is the decision step as the orchestrator sees it. Implementations
// other than the HTTP client exist for tests (scripted deciders).
type Decider interface {
	Decide(ctx context.Context, p payload.Payload, tools []tool.Description) (Decision, error)
}

type Config struct {
	APIKey  string
	Model   string
	BaseURL string // empty for api.openai.com; set for OpenRouter etc.
}

// Client calls a chat-completions endpoint once per cycle and parses the
// JSON decision out of the reply.
type Client struct {
	api   *openai.Client
	model string
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("ai api key is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("ai model is required")
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &Client{api: openai.NewClientWithConfig(clientCfg), model: cfg.Model}, nil
}

// Decide sends the payload and capability listing and returns the parsed
// decision. Transport errors surface to the caller, which degrades to wait;
// parse problems degrade here and are not an error.
func (c *Client) Decide(ctx context.Context, p payload.Payload, tools []tool.Description) (Decision, error) {
	user, err := RenderPrompt(p, tools)
	if err != nil {
		return Wait("prompt render failed"), err
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Temperature: 0.7,
	})
	if err != nil {
		return Wait("decision call failed"), fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Wait("empty decision response"), fmt.Errorf("chat completion returned no choices")
	}

	d, _ := ParseDecision(resp.Choices[0].Message.Content)
	return d, nil
}

const systemPrompt = `You are a conversational agent observing chat channels across platforms.
Given the current world state and the available tools, choose exactly one action.
Respond with JSON only, in this shape:
{"reasoning": "why", "action": {"tool": "<name>", "parameters": {...}}}
If nothing needs doing, choose the "wait" tool.`

// RenderPrompt produces the user message deterministically: the payload as
// JSON followed by the tool listing in registration order, so identical
// inputs always yield the identical prompt.
func RenderPrompt(p payload.Payload, tools []tool.Description) (string, error) {
	stateJSON, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	var sb strings.Builder
	sb.WriteString("## World state\n")
	sb.Write(stateJSON)
	sb.WriteString("\n\n## Available tools\n")
	for _, t := range tools {
		schemaJSON, err := json.Marshal(t.Schema)
		if err != nil {
			return "", fmt.Errorf("marshal schema for %s: %w", t.Name, err)
		}
		fmt.Fprintf(&sb, "- %s: %s\n  parameters: %s\n", t.Name, t.Description, schemaJSON)
	}
	return sb.String(), nil
}
