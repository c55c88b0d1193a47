package ai

import "context"

// StreamProvider is implemented by providers that can emit partial replies.
// Both channels are closed when the stream ends; errs carries at most one value.
type StreamProvider interface {
	StreamChat(ctx context.Context, messages []Message) (<-chan string, <-chan error)
}

// GenerateStream streams a single prompt when p supports it, and otherwise
// falls back to one Chat call delivered as a single chunk.
func GenerateStream(ctx context.Context, p Provider, prompt string) (<-chan string, <-chan error) {
	msgs := []Message{{Role: RoleUser, Content: prompt}}
	if sp, ok := p.(StreamProvider); ok {
		return sp.StreamChat(ctx, msgs)
	}

	chunks := make(chan string, 1)
	errs := make(chan error, 1)
	go func() {
		defer close(chunks)
		defer close(errs)
		out, err := Generate(ctx, p, prompt)
		if err != nil {
			errs <- err
			return
		}
		chunks <- out
	}()
	return chunks, errs
}
