package brain

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/abelbrown/roundup/internal/config"
)

// Provider configurations

func ClaudeConfig(s config.ModelSettings) *ProviderConfig {
	return &ProviderConfig{
		Name:       "claude",
		Endpoint:   endpointOr(s.Endpoint, "https://api.anthropic.com/v1/messages"),
		APIKey:     s.APIKey,
		Model:      modelOr(s.Model, "claude-3-5-haiku-latest"),
		AuthHeader: "x-api-key",
		ExtraHeaders: map[string]string{
			"anthropic-version": "2023-06-01",
		},
		BuildBody:     buildClaudeBody,
		ParseResponse: parseClaudeResponse,
	}
}

func OpenAIConfig(s config.ModelSettings) *ProviderConfig {
	return &ProviderConfig{
		Name:          "openai",
		Endpoint:      endpointOr(s.Endpoint, "https://api.openai.com/v1/chat/completions"),
		APIKey:        s.APIKey,
		Model:         modelOr(s.Model, "gpt-4o-mini"),
		AuthHeader:    "Authorization",
		AuthPrefix:    "Bearer ",
		BuildBody:     buildOpenAIBody,
		ParseResponse: parseOpenAIResponse,
	}
}

func OllamaConfig(s config.ModelSettings) *ProviderConfig {
	endpoint := strings.TrimRight(endpointOr(s.Endpoint, "http://localhost:11434"), "/")

	// Auto-detect model if not specified
	model := s.Model
	if model == "" {
		model = detectOllamaModel(endpoint)
	}

	return &ProviderConfig{
		Name:          "ollama",
		Endpoint:      endpoint + "/api/generate",
		Model:         model,
		KeyOptional:   true,
		BuildBody:     buildOllamaBody,
		ParseResponse: parseOllamaResponse,
	}
}

// detectOllamaModel queries Ollama for available models and picks one
func detectOllamaModel(endpoint string) string {
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(endpoint + "/api/tags")
	if err != nil {
		return "" // Will mark provider as unavailable
	}
	defer resp.Body.Close()

	var tags struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return ""
	}

	if len(tags.Models) == 0 {
		return ""
	}

	// Prefer instruct models; classification is a short instruction task.
	for _, m := range tags.Models {
		if strings.Contains(strings.ToLower(m.Name), "instruct") {
			return m.Name
		}
	}

	return tags.Models[0].Name
}

// Body builders

func buildClaudeBody(cfg *ProviderConfig, req Request) map[string]any {
	body := map[string]any{
		"model":      cfg.Model,
		"max_tokens": maxTokensOr(req.MaxTokens, 512),
		"messages":   []map[string]string{{"role": "user", "content": req.UserPrompt}},
	}
	if req.SystemPrompt != "" {
		body["system"] = req.SystemPrompt
	}
	return body
}

func buildOpenAIBody(cfg *ProviderConfig, req Request) map[string]any {
	messages := []map[string]string{}
	if req.SystemPrompt != "" {
		messages = append(messages, map[string]string{"role": "system", "content": req.SystemPrompt})
	}
	messages = append(messages, map[string]string{"role": "user", "content": req.UserPrompt})

	return map[string]any{
		"model":                 cfg.Model,
		"max_completion_tokens": maxTokensOr(req.MaxTokens, 512),
		"messages":              messages,
	}
}

func buildOllamaBody(cfg *ProviderConfig, req Request) map[string]any {
	prompt := req.UserPrompt
	if req.SystemPrompt != "" {
		prompt = req.SystemPrompt + "\n\n" + req.UserPrompt
	}
	return map[string]any{
		"model":  cfg.Model,
		"prompt": prompt,
		"stream": false,
	}
}

// Response parsers

func parseClaudeResponse(body []byte) (string, string, error) {
	var resp struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
		Model string `json:"model"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", "", err
	}
	var texts []string
	for _, c := range resp.Content {
		if c.Type == "text" {
			texts = append(texts, c.Text)
		}
	}
	return strings.Join(texts, "\n\n"), resp.Model, nil
}

func parseOpenAIResponse(body []byte) (string, string, error) {
	var resp struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Model string `json:"model"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", "", err
	}
	if len(resp.Choices) > 0 {
		return resp.Choices[0].Message.Content, resp.Model, nil
	}
	return "", resp.Model, nil
}

func parseOllamaResponse(body []byte) (string, string, error) {
	var resp struct {
		Response string `json:"response"`
		Model    string `json:"model"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", "", err
	}
	return resp.Response, resp.Model, nil
}

// Helpers

func endpointOr(v, defaultVal string) string {
	if v != "" {
		return v
	}
	return defaultVal
}

func modelOr(v, defaultVal string) string {
	if v != "" {
		return v
	}
	return defaultVal
}

func maxTokensOr(v, defaultVal int) int {
	if v > 0 {
		return v
	}
	return defaultVal
}

// NewManagerFromConfig creates the enabled providers and a manager that
// prefers cfg.PreferredModel. Providers that are enabled but not usable
// are logged through log and skipped.
func NewManagerFromConfig(cfg *config.Config, opts TransportOptions, log func(msg string, args ...any)) *Manager {
	var providers []Provider
	var configs []*ProviderConfig
	if cfg.Models.Claude.Enabled {
		configs = append(configs, ClaudeConfig(cfg.Models.Claude))
	}
	if cfg.Models.OpenAI.Enabled {
		configs = append(configs, OpenAIConfig(cfg.Models.OpenAI))
	}
	if cfg.Models.Ollama.Enabled {
		configs = append(configs, OllamaConfig(cfg.Models.Ollama))
	}

	for _, pc := range configs {
		p := NewHTTPProvider(pc, opts)
		if !p.Available() {
			if log != nil {
				// Only log whether key exists, never log key content
				log("provider skipped - not available", "name", pc.Name, "has_api_key", pc.APIKey != "")
			}
			continue
		}
		providers = append(providers, p)
		if log != nil {
			log("provider created", "name", pc.Name, "model", pc.Model)
		}
	}
	return NewManager(cfg.PreferredModel, providers...)
}
