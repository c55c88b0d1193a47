package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"
)

type OllamaProvider struct {
	BaseURL string
	Model   string
	Client  *http.Client
	// StreamClient has no global timeout; ctx bounds streamed replies.
	StreamClient *http.Client
}

type ollamaChatReq struct {
	Model    string    `json:"model"`
	Messages []wireMsg `json:"messages"`
	Stream   bool      `json:"stream"`
}

type ollamaChatResp struct {
	Message wireMsg `json:"message"`
	Done    bool    `json:"done"`
	Error   string  `json:"error,omitempty"`
}

func NewOllamaProvider(baseURL, model string, timeout time.Duration) *OllamaProvider {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "llama3:latest"
	}
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	return &OllamaProvider{
		BaseURL:      strings.TrimRight(baseURL, "/"),
		Model:        model,
		Client:       &http.Client{Timeout: timeout},
		StreamClient: &http.Client{},
	}
}

func (p *OllamaProvider) url() string { return p.BaseURL + "/api/chat" }

func (p *OllamaProvider) Chat(ctx context.Context, messages []Message) (string, error) {
	resp, err := postJSON(ctx, p.Client, "ollama", p.url(), nil, ollamaChatReq{
		Model:    p.Model,
		Messages: toWire(messages),
	})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var decoded ollamaChatResp
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", err
	}
	if decoded.Error != "" {
		return "", errors.New("ollama: " + decoded.Error)
	}
	return decoded.Message.Content, nil
}

// StreamChat reads Ollama's newline-delimited JSON stream.
func (p *OllamaProvider) StreamChat(ctx context.Context, messages []Message) (<-chan string, <-chan error) {
	chunks := make(chan string, 16)
	errs := make(chan error, 1)

	go func() {
		defer close(chunks)
		defer close(errs)

		client := p.StreamClient
		if client == nil {
			client = p.Client
		}
		resp, err := postJSON(ctx, client, "ollama", p.url(), nil, ollamaChatReq{
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
			line := sc.Bytes()
			if len(line) == 0 {
				continue
			}
			var decoded ollamaChatResp
			if err := json.Unmarshal(line, &decoded); err != nil {
				errs <- err
				return
			}
			if decoded.Error != "" {
				errs <- errors.New("ollama: " + decoded.Error)
				return
			}
			if decoded.Message.Content != "" && !sendChunk(ctx, chunks, decoded.Message.Content) {
				errs <- ctx.Err()
				return
			}
			if decoded.Done {
				return
			}
		}
		if err := sc.Err(); err != nil {
			errs <- err
		}
	}()

	return chunks, errs
}
