package provider

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/theapemachine/mem0-go/pkg/errors"
)

/*
Select validates the provider name, then the settings, and only then
constructs the adapter. An unsupported name returns before anything else
happens.
*/
func Select(name, model string, settings Settings) (Adapter, error) {
	kind, err := ParseKind(name)
	if err != nil {
		return nil, err
	}

	if model == "" {
		model = kind.DefaultModel()
	}

	if err = validate(kind, model, settings); err != nil {
		return nil, err
	}

	log.Debug("selecting provider", "provider", kind, "model", model)

	switch kind {
	case KindOpenAI, KindOpenRouter, KindDeepInfra, KindLMStudio:
		return NewOpenAIProvider(kind, model, WithOpenAIClient(settings)), nil
	case KindAnthropic:
		return NewAnthropicProvider(model, WithAnthropicClient(settings)), nil
	case KindGoogle:
		return NewGoogleProvider(context.Background(), model, settings)
	case KindBedrock:
		return NewBedrockProvider(context.Background(), model, settings)
	case KindOllama:
		return NewOllamaProvider(model, settings)
	case KindCohere:
		return NewCohereProvider(model, WithCohereClient(settings)), nil
	case KindDeepSeek:
		return NewDeepseekProvider(model, WithDeepseekClient(settings)), nil
	case KindLangChain:
		return NewLangChainProvider(model, settings.LangChain, settings), nil
	}

	return nil, errors.NewConfigurationError("provider", "no adapter for "+string(kind))
}
