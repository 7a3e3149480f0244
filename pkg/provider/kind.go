package provider

import (
	"fmt"
	"strings"

	"github.com/theapemachine/mem0-go/pkg/errors"
)

/*
Kind enumerates the supported vendors. Adding a vendor means adding a Kind
and one case in Select.
*/
type Kind string

const (
	KindOpenAI     Kind = "openai"
	KindAnthropic  Kind = "anthropic"
	KindGoogle     Kind = "google"
	KindBedrock    Kind = "bedrock"
	KindOllama     Kind = "ollama"
	KindOpenRouter Kind = "openrouter"
	KindDeepInfra  Kind = "deepinfra"
	KindLMStudio   Kind = "lmstudio"
	KindLangChain  Kind = "langchain"
	KindCohere     Kind = "cohere"
	KindDeepSeek   Kind = "deepseek"
)

var supported = []Kind{
	KindOpenAI, KindAnthropic, KindGoogle, KindBedrock, KindOllama, KindOpenRouter,
	KindDeepInfra, KindLMStudio, KindLangChain, KindCohere, KindDeepSeek,
}

/*
kindAliases maps alternative spellings callers use in configuration.
*/
var kindAliases = map[string]Kind{
	"gemini":      KindGoogle,
	"aws_bedrock": KindBedrock,
	"aws-bedrock": KindBedrock,
	"lm_studio":   KindLMStudio,
	"lm-studio":   KindLMStudio,
}

/*
defaultModels are used when Select is given an empty model id.
*/
var defaultModels = map[Kind]string{
	KindOpenAI:     "gpt-4o-mini",
	KindAnthropic:  "claude-3-5-sonnet-latest",
	KindGoogle:     "gemini-2.0-flash",
	KindBedrock:    "anthropic.claude-3-5-sonnet-20240620-v1:0",
	KindOllama:     "llama3.1:70b",
	KindOpenRouter: "openai/gpt-4o-mini",
	KindDeepInfra:  "meta-llama/Meta-Llama-3.1-70B-Instruct",
	KindLMStudio:   "lmstudio-community/Meta-Llama-3.1-70B-Instruct-GGUF/Meta-Llama-3.1-70B-Instruct-IQ2_M.gguf",
	KindCohere:     "command-r-plus",
	KindDeepSeek:   "deepseek-chat",
	KindLangChain:  "langchain",
}

/*
SupportedKinds lists every provider Select accepts.
*/
func SupportedKinds() []Kind {
	return append([]Kind(nil), supported...)
}

/*
ParseKind resolves a provider name, failing with a ConfigurationError for
anything outside the supported set.
*/
func ParseKind(name string) (Kind, error) {
	normalized := strings.ToLower(strings.TrimSpace(name))

	if alias, ok := kindAliases[normalized]; ok && alias != "" {
		return alias, nil
	}

	for _, kind := range supported {
		if string(kind) == normalized {
			return kind, nil
		}
	}

	names := make([]string, 0, len(supported))

	for _, kind := range supported {
		names = append(names, string(kind))
	}

	return "", errors.NewConfigurationError(
		"provider",
		fmt.Sprintf("unsupported provider %q, expected one of %s", name, strings.Join(names, ", ")),
	)
}

/*
DefaultModel returns the model used when none is configured.
*/
func (kind Kind) DefaultModel() string {
	return defaultModels[kind]
}

/*
EnvKey names the environment variable the application boundary reads the
vendor's API key from.
*/
func (kind Kind) EnvKey() string {
	switch kind {
	case KindGoogle:
		return "GOOGLE_API_KEY"
	case KindLangChain, KindBedrock, KindOllama:
		return ""
	case KindLMStudio:
		return "LMSTUDIO_API_KEY"
	}

	return strings.ToUpper(string(kind)) + "_API_KEY"
}

func (kind Kind) requiresAPIKey() bool {
	switch kind {
	case KindOllama, KindLMStudio, KindLangChain, KindBedrock:
		return false
	}

	return true
}
