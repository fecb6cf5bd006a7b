package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/lshigami/Marmoset/config"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/option"
)

// GatewayMessage is one turn of the prompt sent to the completion gateway.
// Role is "system", "user" or "assistant".
type GatewayMessage struct {
	Role    string
	Content string
}

// Completion is the gateway's reply: generated text plus token accounting.
type Completion struct {
	Content     string
	TotalTokens int32
}

// CompletionGateway is the external AI service, treated as an opaque
// prompt-in/text-out function. It may fail or return malformed content;
// callers own parsing and validation.
type CompletionGateway interface {
	Complete(ctx context.Context, messages []GatewayMessage, temperature float32, maxTokens int32) (*Completion, error)
}

type geminiGateway struct {
	client *genai.Client
	cfg    *config.Config
}

func NewGeminiGateway(cfg *config.Config) (CompletionGateway, error) {
	if cfg.GeminiApiKey == "" {
		log.Warn().Msg("GEMINI_API_KEY is not set. Completion gateway will be non-functional.")
		return &geminiGateway{cfg: cfg, client: nil}, nil
	}
	client, err := genai.NewClient(context.Background(), option.WithAPIKey(cfg.GeminiApiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Gemini client: %w", err)
	}
	return &geminiGateway{client: client, cfg: cfg}, nil
}

func (g *geminiGateway) Complete(ctx context.Context, messages []GatewayMessage, temperature float32, maxTokens int32) (*Completion, error) {
	if g.client == nil {
		return nil, fmt.Errorf("gemini client not initialized")
	}

	model := g.client.GenerativeModel("gemini-1.5-flash")
	model.SetTemperature(temperature)
	if maxTokens > 0 {
		model.SetMaxOutputTokens(maxTokens)
	}

	var system strings.Builder
	var parts []genai.Part
	for _, m := range messages {
		switch m.Role {
		case "system":
			if system.Len() > 0 {
				system.WriteString("\n\n")
			}
			system.WriteString(m.Content)
		case "assistant":
			parts = append(parts, genai.Text("Assistant: "+m.Content+"\n"))
		default:
			parts = append(parts, genai.Text(m.Content+"\n"))
		}
	}
	if system.Len() > 0 {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system.String())}}
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("no non-system messages to send")
	}

	resp, err := model.GenerateContent(ctx, parts...)
	if err != nil {
		log.Error().Err(err).Msg("Gemini API error")
		return nil, err
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		log.Warn().Msg("Gemini returned no candidates or parts in response.")
		return nil, fmt.Errorf("gemini returned no content")
	}

	var out strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			out.WriteString(string(txt))
		}
	}
	if out.Len() == 0 {
		return nil, fmt.Errorf("gemini returned no text content")
	}

	completion := &Completion{Content: out.String()}
	if resp.UsageMetadata != nil {
		completion.TotalTokens = resp.UsageMetadata.TotalTokenCount
	}
	return completion, nil
}
