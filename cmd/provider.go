package cmd

import (
	"fmt"
	"os"

	"github.com/lehigh-university-libraries/collager/internal/gemini"
	"github.com/lehigh-university-libraries/collager/internal/ollama"
	"github.com/lehigh-university-libraries/collager/internal/openai"
	"github.com/lehigh-university-libraries/collager/internal/providers"
)

// resolveProviderName applies the COLLAGER_PROVIDER env fallback, then
// openai.
func resolveProviderName(name string) string {
	if name == "" {
		name = os.Getenv("COLLAGER_PROVIDER")
	}
	if name == "" {
		name = "openai"
	}
	return name
}

// splitProviderNames resolves the planning and chat provider names from the
// --provider and --curation-provider flags. Gemini cannot thread the tool
// calls the planning agent requires, so a gemini planning selection falls
// back to openai while gemini keeps serving curation and annotation.
func splitProviderNames(providerFlag, curationFlag string) (planName, chatName string) {
	planName = resolveProviderName(providerFlag)
	chatName = planName
	if curationFlag != "" {
		chatName = resolveProviderName(curationFlag)
	}
	if planName == "gemini" {
		planName = "openai"
	}
	return planName, chatName
}

// newProvider builds the named LLM provider.
func newProvider(name string) (providers.Provider, string, error) {
	switch resolveProviderName(name) {
	case "openai":
		return openai.New(), defaultModel("OPENAI_MODEL", "gpt-4o"), nil
	case "ollama":
		return ollama.New(), defaultModel("OLLAMA_MODEL", "mistral-small3.2:24b"), nil
	case "gemini":
		return gemini.New(), defaultModel("GEMINI_MODEL", "gemini-2.0-flash"), nil
	default:
		return nil, "", fmt.Errorf("unsupported provider: %s", resolveProviderName(name))
	}
}

func defaultModel(envVar, fallback string) string {
	if model := os.Getenv(envVar); model != "" {
		return model
	}
	return fallback
}
