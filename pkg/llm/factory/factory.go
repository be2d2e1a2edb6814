package factory

import (
	"ai-refinery-be/pkg/llm"
	"ai-refinery-be/pkg/llm/anthropic"
	"ai-refinery-be/pkg/llm/huggingface"
	"ai-refinery-be/pkg/llm/ollama"
	"ai-refinery-be/pkg/llm/openai"
	"fmt"
)

type ProviderKeys struct {
	OpenAI      string
	Anthropic   string
	HuggingFace string
}

func NewLLMProvider(providerType, modelName, baseURL string, keys ProviderKeys) (llm.LLMProvider, error) {
	switch providerType {
	case "ollama":
		if baseURL == "" {
			baseURL = "http://localhost:11434" // Default
		}
		return ollama.NewOllamaProvider(baseURL, modelName), nil
	case "openai":
		if keys.OpenAI == "" {
			return nil, fmt.Errorf("openai provider requires OPENAI_API_KEY")
		}
		return openai.NewOpenAIProvider(keys.OpenAI, modelName), nil
	case "anthropic":
		if keys.Anthropic == "" {
			return nil, fmt.Errorf("anthropic provider requires ANTHROPIC_API_KEY")
		}
		return anthropic.NewAnthropicProvider(keys.Anthropic, modelName), nil
	case "huggingface":
		if keys.HuggingFace == "" {
			return nil, fmt.Errorf("huggingface provider requires HUGGINGFACE_API_KEY")
		}
		return huggingface.NewHuggingFaceProvider(keys.HuggingFace, "", modelName), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", providerType)
	}
}
