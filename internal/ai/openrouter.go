package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"
)

type OpenRouterProvider struct {
	BaseURL      string
	APIKey       string
	Model        string
	SiteURL      string
	AppName      string
	Client       *http.Client
	StreamClient *http.Client
}

type OpenRouterOptions struct {
	BaseURL string
	APIKey  string
	Model   string
	SiteURL string
	AppName string
	Timeout time.Duration
}

type openRouterReq struct {
	Model    string    `json:"model"`
	Messages []wireMsg `json:"messages"`
	Stream   bool      `json:"stream"`
}

type openRouterErr struct {
	Message string `json:"message"`
}

type openRouterResp struct {
	Choices []struct {
		Message wireMsg `json:"message"`
		Delta   struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
	Error *openRouterErr `json:"error,omitempty"`
}

// NewOpenRouterProvider returns ErrUnavailable without an API key.
func NewOpenRouterProvider(opts OpenRouterOptions) (*OpenRouterProvider, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, ErrUnavailable
	}
	if strings.TrimSpace(opts.Model) == "" {
		return nil, errors.New("openrouter: model is required")
	}
	if opts.BaseURL == "" {
		opts.BaseURL = "https://openrouter.ai/api/v1"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 90 * time.Second
	}
	return &OpenRouterProvider{
		BaseURL:      strings.TrimRight(opts.BaseURL, "/"),
		APIKey:       opts.APIKey,
		Model:        strings.TrimSpace(opts.Model),
		SiteURL:      opts.SiteURL,
		AppName:      opts.AppName,
		Client:       &http.Client{Timeout: opts.Timeout},
		StreamClient: &http.Client{},
	}, nil
}

func (p *OpenRouterProvider) headers() map[string]string {
	return map[string]string{
		"Authorization": "Bearer " + p.APIKey,
		"HTTP-Referer":  p.SiteURL,
		"X-Title":       p.AppName,
	}
}

func (p *OpenRouterProvider) url() string { return p.BaseURL + "/chat/completions" }

func (p *OpenRouterProvider) Chat(ctx context.Context, messages []Message) (string, error) {
	resp, err := postJSON(ctx, p.Client, "openrouter", p.url(), p.headers(), openRouterReq{
		Model:    p.Model,
		Messages: toWire(messages),
	})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var decoded openRouterResp
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", err
	}
	if decoded.Error != nil && decoded.Error.Message != "" {
		return "", errors.New("openrouter: " + decoded.Error.Message)
	}
	if len(decoded.Choices) == 0 {
		return "", ErrEmptyReply
	}
	return decoded.Choices[0].Message.Content, nil
}

// StreamChat reads OpenRouter's SSE stream ("data: {...}" lines, "[DONE]").
func (p *OpenRouterProvider) StreamChat(ctx context.Context, messages []Message) (<-chan string, <-chan error) {
	chunks := make(chan string, 16)
	errs := make(chan error, 1)

	go func() {
		defer close(chunks)
		defer close(errs)

		client := p.StreamClient
		if client == nil {
			client = p.Client
		}
		resp, err := postJSON(ctx, client, "openrouter", p.url(), p.headers(), openRouterReq{
			Model:    p.Model,
			Messages: toWire(messages),
			Stream:   true,
		})
		if err != nil {
			errs <- err
			return
		}
		defer resp.Body.Close()

		sc := newLineScanner(resp.Body)
		for sc.Scan() {
			line := strings.TrimSpace(sc.Text())
			data, ok := strings.CutPrefix(line, "data:")
			if !ok {
				continue
			}
			data = strings.TrimSpace(data)
			if data == "[DONE]" {
				return
			}
			var decoded openRouterResp
			if err := json.Unmarshal([]byte(data), &decoded); err != nil {
				errs <- err
				return
			}
			if decoded.Error != nil && decoded.Error.Message != "" {
				errs <- errors.New("openrouter: " + decoded.Error.Message)
				return
			}
			if len(decoded.Choices) == 0 || decoded.Choices[0].Delta.Content == "" {
				continue
			}
			if !sendChunk(ctx, chunks, decoded.Choices[0].Delta.Content) {
				errs <- ctx.Err()
				return
			}
		}
		if err := sc.Err(); err != nil {
			errs <- err
		}
	}()

	return chunks, errs
}
