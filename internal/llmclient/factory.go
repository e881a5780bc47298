package llmclient

import (
	"fmt"
	"net/http"
	"os"

	"codewiki/internal/config"
	"codewiki/internal/corerr"
)

// Build constructs the Provider named by cfg.Provider. The anthropic, openai
// and groq providers require ANTHROPIC_API_KEY, OPENAI_API_KEY or
// GROQ_API_KEY respectively and fail with a Config error when it is unset;
// there is no fallback to another provider. "ollama", "local" and an empty
// provider use a local OpenAI-compatible endpoint and need no key.
func Build(cfg config.LLMConfig, httpClient *http.Client) (Provider, error) {
	baseURL := ""
	if cfg.BaseURL != nil {
		baseURL = *cfg.BaseURL
	}

	switch cfg.Provider {
	case "anthropic":
		key := os.Getenv("ANTHROPIC_API_KEY")
		if key == "" {
			return nil, corerr.New(corerr.KindConfig, "ANTHROPIC_API_KEY not set for anthropic provider")
		}
		return NewAnthropic(key, baseURL, cfg.Model, httpClient), nil

	case "openai":
		key := os.Getenv("OPENAI_API_KEY")
		if key == "" {
			return nil, corerr.New(corerr.KindConfig, "OPENAI_API_KEY not set for openai provider")
		}
		return NewOpenAI(key, baseURL, cfg.Model, httpClient), nil

	case "groq":
		key := os.Getenv("GROQ_API_KEY")
		if key == "" {
			return nil, corerr.New(corerr.KindConfig, "GROQ_API_KEY not set for groq provider")
		}
		url := baseURL
		if url == "" {
			url = "https://api.groq.com/openai/v1"
		}
		return NewOpenAI(key, url, cfg.Model, httpClient), nil

	case "ollama", "local", "":
		url := baseURL
		if url == "" {
			url = "http://localhost:11434/v1"
		}
		return NewOpenAI("local", url, cfg.Model, httpClient), nil

	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", cfg.Provider)
	}
}

// DetectFromEnv reports which provider to use: an explicitly configured
// provider other than "local"/"ollama" is returned as is, whether or not its
// key is set; otherwise the first of OPENAI_API_KEY, ANTHROPIC_API_KEY and
// GROQ_API_KEY that is set picks the provider, and "local" when none is.
func DetectFromEnv(cfg config.LLMConfig) string {
	if cfg.Provider != "" && cfg.Provider != "local" && cfg.Provider != "ollama" {
		return cfg.Provider
	}
	switch {
	case os.Getenv("OPENAI_API_KEY") != "":
		return "openai"
	case os.Getenv("ANTHROPIC_API_KEY") != "":
		return "anthropic"
	case os.Getenv("GROQ_API_KEY") != "":
		return "groq"
	default:
		return "local"
	}
}
