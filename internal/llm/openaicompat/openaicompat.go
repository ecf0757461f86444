// Package openaicompat is a core.LLMProvider for any OpenAI-compatible chat
// completions endpoint (local-endpoint or cloud), built on a klient HTTP
// client the same way the other internal/llm providers are.
package openaicompat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/worldline-go/klient"

	"github.com/aramirez087/tuitbot/internal/core"
)

const DefaultBaseURL = "https://api.openai.com/v1/chat/completions"
const defaultTimeout = 60 * time.Second

type Provider struct {
	Model  string
	client *klient.Client
}

type request struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type response struct {
	Error   *apiError `json:"error,omitempty"`
	Choices []choice  `json:"choices"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

type choice struct {
	Message choiceMessage `json:"message"`
}

type choiceMessage struct {
	Content string `json:"content"`
}

// New builds a provider for any endpoint speaking the OpenAI chat-completions
// wire format — hosted (api.openai.com) or local (Ollama, vLLM, LM Studio).
// apiKey may be empty for local endpoints.
func New(apiKey, model, baseURL, proxy string, insecureSkipVerify bool) (*Provider, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	headers := http.Header{"Content-Type": []string{"application/json"}}
	if apiKey != "" {
		headers["Authorization"] = []string{"Bearer " + apiKey}
	}

	opts := []klient.OptionClientFn{
		klient.WithBaseURL(baseURL),
		klient.WithLogger(slog.Default()),
		klient.WithHeaderSet(headers),
	}
	if proxy != "" {
		opts = append(opts, klient.WithProxy(proxy))
	}
	if insecureSkipVerify {
		opts = append(opts, klient.WithInsecureSkipVerify(true))
	}

	client, err := klient.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("build openai-compatible client: %w", err)
	}

	return &Provider{Model: model, client: client}, nil
}

func (p *Provider) Generate(ctx context.Context, prompt string, params core.GenerateParams) (string, error) {
	timeout := params.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	reqBody := request{
		Model:       p.Model,
		Messages:    []message{{Role: "user", Content: prompt}},
		MaxTokens:   params.MaxTokens,
		Temperature: params.Temperature,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", core.Wrap(core.CodeSerializationError, "marshal openai-compatible request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", core.Wrap(core.CodeLLMError, "build openai-compatible request", err)
	}

	var result response
	doErr := p.client.Do(req, func(r *http.Response) error {
		data, err := io.ReadAll(r.Body)
		if err != nil {
			return err
		}
		return json.Unmarshal(data, &result)
	})
	if doErr != nil {
		if ctx.Err() != nil {
			return "", core.NewError(core.CodeLLMTimeout, "openai-compatible request timed out")
		}
		return "", core.Wrap(core.CodeLLMError, "openai-compatible request failed", doErr)
	}

	if result.Error != nil {
		return "", core.NewError(core.CodeLLMError, fmt.Sprintf("provider error: %s", result.Error.Message))
	}
	if len(result.Choices) == 0 {
		return "", core.NewError(core.CodeLLMError, "provider returned no choices")
	}

	return result.Choices[0].Message.Content, nil
}

func (p *Provider) HealthCheck(ctx context.Context) error {
	_, err := p.Generate(ctx, "ping", core.GenerateParams{MaxTokens: 1})
	return err
}
