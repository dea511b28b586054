package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/gnemet/DeckForge/internal/config"
	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// Usage is the token accounting of one request.
type Usage struct {
	Provider         string  `json:"provider"`
	Model            string  `json:"model"`
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	TotalTokens      int     `json:"total_tokens"`
	Cost             float64 `json:"cost"`
}

// Generator sends one prompt to a model.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, Usage, error)
}

type Client struct {
	Provider string
	Settings config.ProviderSettings
	gen      Generator
}

// NewClient returns a client for the active provider of cfg.
func NewClient(cfg *config.Config) *Client {
	name, settings, _ := cfg.AI.Active()
	c := &Client{Provider: name, Settings: settings}
	switch settings.Driver {
	case "gemini":
		c.gen = &geminiDriver{settings: settings}
	case "mock":
		c.gen = &Mock{}
	default:
		c.gen = unsupported(settings.Driver)
	}
	return c
}

// NewClientWith returns a client that sends prompts to gen.
func NewClientWith(provider string, settings config.ProviderSettings, gen Generator) *Client {
	return &Client{Provider: provider, Settings: settings, gen: gen}
}

// Generate sends prompt and returns the answer with its usage and cost.
func (c *Client) Generate(ctx context.Context, prompt string) (string, Usage, error) {
	text, usage, err := c.gen.Generate(ctx, prompt)
	if err != nil {
		return "", usage, err
	}
	usage.Provider = c.Provider
	if usage.Model == "" {
		usage.Model = c.Settings.Model
	}
	if usage.TotalTokens == 0 {
		usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
	}
	usage.Cost = (float64(usage.PromptTokens)*c.Settings.InputCost +
		float64(usage.CompletionTokens)*c.Settings.OutputCost) / 1e6
	return text, usage, nil
}

func (c *Client) GenerateContent(ctx context.Context, prompt string) (string, error) {
	text, _, err := c.Generate(ctx, prompt)
	return text, err
}

type unsupported string

func (u unsupported) Generate(ctx context.Context, prompt string) (string, Usage, error) {
	return "", Usage{}, fmt.Errorf("unsupported AI driver %q", string(u))
}

type geminiDriver struct {
	settings config.ProviderSettings
}

func (g *geminiDriver) Generate(ctx context.Context, prompt string) (string, Usage, error) {
	if g.settings.Key == "" {
		return "", Usage{}, fmt.Errorf("gemini key is not set (GEMINI_KEY)")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(g.settings.Key))
	if err != nil {
		return "", Usage{}, fmt.Errorf("failed to create gemini client: %w", err)
	}
	defer client.Close()

	model := client.GenerativeModel(g.settings.Model)
	if g.settings.Temperature > 0 {
		model.SetTemperature(float32(g.settings.Temperature))
	}
	if g.settings.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(g.settings.MaxTokens))
	}
	model.ResponseMIMEType = "application/json"

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", Usage{}, fmt.Errorf("gemini request failed: %w", err)
	}

	var sb strings.Builder
	if len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		for _, part := range resp.Candidates[0].Content.Parts {
			if t, ok := part.(genai.Text); ok {
				sb.WriteString(string(t))
			}
		}
	}
	usage := Usage{Model: g.settings.Model}
	if m := resp.UsageMetadata; m != nil {
		usage.PromptTokens = int(m.PromptTokenCount)
		usage.CompletionTokens = int(m.CandidatesTokenCount)
		usage.TotalTokens = int(m.TotalTokenCount)
	}
	if sb.Len() == 0 {
		return "", usage, fmt.Errorf("gemini returned no text")
	}
	return sb.String(), usage, nil
}

// Mock answers without a network. With an empty Response it returns a plan
// that reuses the first template slide unchanged.
type Mock struct {
	Response string
	// Prompts records every prompt received.
	Prompts []string
}

func (m *Mock) Generate(ctx context.Context, prompt string) (string, Usage, error) {
	if err := ctx.Err(); err != nil {
		return "", Usage{}, err
	}
	m.Prompts = append(m.Prompts, prompt)
	resp := m.Response
	if resp == "" {
		resp = "```json\n[{\"template_slide\": 0, \"replacements\": {}}]\n```"
	}
	return resp, Usage{
		Model:            "mock",
		PromptTokens:     len(strings.Fields(prompt)),
		CompletionTokens: len(strings.Fields(resp)),
	}, nil
}
