package llm

import (
	"errors"
	"fmt"

	"ledger-bot/internal/config"
)

// ErrNotConfigured means the selected provider has no credentials.
var ErrNotConfigured = errors.New("llm provider not configured")

// Factory builds the narrative model client from configuration.
type Factory struct {
	openAIKey     string
	openAIBaseURL string
	openAIModel   string
	referrer      string
	title         string
	yandexToken   string
	yandexFolder  string
}

func NewFactory(cfg *config.Config) *Factory {
	return &Factory{
		openAIKey:     cfg.OpenAIAPIKey,
		openAIBaseURL: cfg.OpenAIBaseURL,
		openAIModel:   cfg.OpenAIModel,
		referrer:      cfg.OpenRouterReferrer,
		title:         cfg.OpenRouterTitle,
		yandexToken:   cfg.YandexOAuthToken,
		yandexFolder:  cfg.YandexFolderID,
	}
}

// CreateClient returns a client for provider. An empty model uses the
// configured default.
func (f *Factory) CreateClient(provider config.LLMProvider, model string) (Client, error) {
	switch provider {
	case config.ProviderOpenAI:
		if f.openAIKey == "" {
			return nil, fmt.Errorf("%w: OPENAI_API_KEY is empty", ErrNotConfigured)
		}
		if model == "" {
			model = f.openAIModel
		}
		return NewOpenAI(f.openAIKey, f.openAIBaseURL, model, f.referrer, f.title), nil
	case config.ProviderYandex:
		if f.yandexToken == "" || f.yandexFolder == "" {
			return nil, fmt.Errorf("%w: YANDEX_OAUTH_TOKEN and YANDEX_FOLDER_ID are required", ErrNotConfigured)
		}
		return NewYandex(f.yandexToken, f.yandexFolder)
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", provider)
	}
}
