package anthropic

import (
	"ai-refinery-be/pkg/llm"
	"context"
	"fmt"
	"strings"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const defaultMaxTokens = 4096

type AnthropicProvider struct {
	client    anthropicsdk.Client
	ModelName string
}

// Ensure AnthropicProvider implements LLMProvider
var _ llm.LLMProvider = &AnthropicProvider{}

func NewAnthropicProvider(apiKey, modelName string) *AnthropicProvider {
	if modelName == "" {
		modelName = string(anthropicsdk.ModelClaudeSonnet4_20250514)
	}
	return &AnthropicProvider{
		client:    anthropicsdk.NewClient(option.WithAPIKey(apiKey)),
		ModelName: modelName,
	}
}

func (a *AnthropicProvider) Chat(ctx context.Context, history []llm.Message, opts ...llm.Option) (string, error) {
	params := a.buildParams(history, opts)

	message, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("anthropic chat completion failed: %w", err)
	}

	var full strings.Builder
	for _, block := range message.Content {
		switch variant := block.AsAny().(type) {
		case anthropicsdk.TextBlock:
			full.WriteString(variant.Text)
		}
	}

	return full.String(), nil
}

func (a *AnthropicProvider) ChatStream(ctx context.Context, history []llm.Message, onToken func(string), opts ...llm.Option) (string, error) {
	params := a.buildParams(history, opts)

	stream := a.client.Messages.NewStreaming(ctx, params)

	var full strings.Builder
	for stream.Next() {
		event := stream.Current()

		switch eventVariant := event.AsAny().(type) {
		case anthropicsdk.ContentBlockDeltaEvent:
			switch deltaVariant := eventVariant.Delta.AsAny().(type) {
			case anthropicsdk.TextDelta:
				if deltaVariant.Text != "" {
					full.WriteString(deltaVariant.Text)
					if onToken != nil {
						onToken(deltaVariant.Text)
					}
				}
			}
		}
	}

	if err := stream.Err(); err != nil {
		return full.String(), fmt.Errorf("anthropic stream error: %w", err)
	}

	return full.String(), nil
}

func (a *AnthropicProvider) Generate(ctx context.Context, prompt string, opts ...llm.Option) (string, error) {
	return a.Chat(ctx, []llm.Message{{Role: "user", Content: prompt}}, opts...)
}

func (a *AnthropicProvider) buildParams(history []llm.Message, opts []llm.Option) anthropicsdk.MessageNewParams {
	options := &llm.Options{
		Temperature: 0.7, // Default
	}
	for _, opt := range opts {
		opt(options)
	}

	// Anthropic takes the system prompt as a separate parameter, not a message.
	var systemPrompt string
	messages := make([]anthropicsdk.MessageParam, 0, len(history))
	for _, msg := range history {
		switch msg.Role {
		case "system":
			if systemPrompt != "" {
				systemPrompt += "\n\n"
			}
			systemPrompt += msg.Content
		case "assistant", "model":
			messages = append(messages, anthropicsdk.NewAssistantMessage(anthropicsdk.NewTextBlock(msg.Content)))
		default:
			messages = append(messages, anthropicsdk.NewUserMessage(anthropicsdk.NewTextBlock(msg.Content)))
		}
	}

	model := a.ModelName
	if options.Model != "" {
		model = options.Model
	}

	maxTokens := defaultMaxTokens
	if options.MaxTokens > 0 {
		maxTokens = options.MaxTokens
	}

	params := anthropicsdk.MessageNewParams{
		Model:       anthropicsdk.Model(model),
		MaxTokens:   int64(maxTokens),
		Messages:    messages,
		Temperature: anthropicsdk.Float(options.Temperature),
	}

	if systemPrompt != "" {
		params.System = []anthropicsdk.TextBlockParam{
			{Text: systemPrompt},
		}
	}

	return params
}
