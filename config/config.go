package config

// Config holds every user-tunable setting, persisted as JSON in the storage
// directory.
type Config struct {
	LLMProvider string `json:"llmProvider"` // "OpenAI", "OpenAI-Compatible", "Anthropic", "Claude-Compatible"
	APIKey      string `json:"apiKey"`
	BaseURL     string `json:"baseUrl"`
	ModelName   string `json:"modelName"`
	MaxTokens   int    `json:"maxTokens"`

	Language       string `json:"language"`
	DataCacheDir   string `json:"dataCacheDir"`
	MaxPreviewRows int    `json:"maxPreviewRows"`
	DetailedLog    bool   `json:"detailedLog"`
}

// Default returns the configuration used before the user saves anything.
func Default() Config {
	return Config{
		LLMProvider:    "OpenAI",
		ModelName:      "gpt-4o-mini",
		MaxTokens:      4096,
		Language:       "en",
		MaxPreviewRows: 15,
	}
}
