package ai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

type wireMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func toWire(messages []Message) []wireMsg {
	out := make([]wireMsg, 0, len(messages))
	for _, m := range messages {
		out = append(out, wireMsg{Role: m.Role, Content: m.Content})
	}
	return out
}

// postJSON sends body as JSON and returns the response when it is 2xx.
// Non-2xx responses are closed and turned into an error prefixed with name.
func postJSON(ctx context.Context, client *http.Client, name, url string, headers map[string]string, body any) (*http.Response, error) {
	if client == nil {
		return nil, fmt.Errorf("%s: http client is nil", name)
	}
	b, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		if v != "" {
			req.Header.Set(k, v)
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
		msg := strings.TrimSpace(string(raw))
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, fmt.Errorf("%s: status %d: %s", name, resp.StatusCode, msg)
	}
	return resp, nil
}

// newLineScanner allows long JSON lines in streamed bodies.
func newLineScanner(r io.Reader) *bufio.Scanner {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 2*1024*1024)
	return sc
}

// sendChunk delivers c unless ctx is done first.
func sendChunk(ctx context.Context, chunks chan<- string, c string) bool {
	select {
	case chunks <- c:
		return true
	case <-ctx.Done():
		return false
	}
}
