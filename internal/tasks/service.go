// Package tasks turns free-text requests into structured task records using
// the reference snapshot and an LLM.
package tasks

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/suPer8Hu/agent-services/internal/ai"
	"github.com/suPer8Hu/agent-services/internal/observability"
	"github.com/suPer8Hu/agent-services/internal/reference"
)

const (
	defaultClarifyQuestion = "Could you provide more details?"
	lowConfidenceQuestion  = "Could you provide more specific details about this task?"
)

// DataSource is the reference snapshot provider (a refcache.Cache).
type DataSource interface {
	Get(ctx context.Context, force bool) (map[string]any, error)
}

// UserLookup resolves the requester profile. Optional.
type UserLookup interface {
	GetUserByID(ctx context.Context, id string) (*reference.UserProfile, error)
}

type Service struct {
	provider  ai.Provider
	data      DataSource
	users     UserLookup
	publisher Publisher

	minConfidence          float64
	clarificationThreshold float64
	now                    func() time.Time
}

type Option func(*Service)

func WithUserLookup(u UserLookup) Option { return func(s *Service) { s.users = u } }

func WithPublisher(p Publisher) Option { return func(s *Service) { s.publisher = p } }

func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// NewService builds the extraction service. provider may be nil, in which
// case every request gets the fallback record.
func NewService(provider ai.Provider, data DataSource, minConfidence, clarificationThreshold float64, opts ...Option) *Service {
	if minConfidence <= 0 || minConfidence > 1 {
		minConfidence = 0.7
	}
	if clarificationThreshold < 0 || clarificationThreshold > minConfidence {
		clarificationThreshold = minConfidence
	}
	s := &Service{
		provider:               provider,
		data:                   data,
		minConfidence:          minConfidence,
		clarificationThreshold: clarificationThreshold,
		now:                    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Available() bool { return s.provider != nil }

// Extract asks the model for a task. It never fails: model errors and
// unusable replies yield FallbackTask.
func (s *Service) Extract(ctx context.Context, userID, text, lang string) TaskData {
	log := observability.LoggerFromContext(ctx)

	var snapshot map[string]any
	if s.data != nil {
		data, err := s.data.Get(ctx, false)
		if err != nil {
			log.Warn("reference data unavailable, extracting without it", slog.Any("err", err))
		}
		snapshot = data
	}

	var requester *reference.UserProfile
	if s.users != nil && userID != "" {
		u, err := s.users.GetUserByID(ctx, userID)
		if err != nil {
			log.Debug("requester profile not found", slog.String("user_id", userID), slog.Any("err", err))
		} else {
			requester = u
		}
	}

	prompt := BuildPrompt(text, lang, snapshot, requester)
	reply, err := ai.Generate(ctx, s.provider, prompt)
	if err != nil {
		if errors.Is(err, ai.ErrUnavailable) {
			log.Warn("llm not configured, returning fallback task")
		} else {
			log.Error("task extraction llm call failed", slog.Any("err", err))
		}
		return FallbackTask(text)
	}

	td, err := ParseTaskData(reply)
	if err != nil {
		log.Error("failed to parse extraction reply", slog.Any("err", err), slog.String("reply", reply))
		return FallbackTask(text)
	}
	log.Info("task extracted", slog.Float64("confidence", td.Confidence))
	return td
}

// Decide maps an extracted task onto the response shape.
func (s *Service) Decide(td TaskData, lang string) ProcessResponse {
	resp := ProcessResponse{Intent: IntentCreate, Language: lang}

	llmQuestion := ""
	if td.ClarificationQuestion != nil {
		llmQuestion = strings.TrimSpace(*td.ClarificationQuestion)
	}

	switch {
	case td.NeedsClarification:
		q := llmQuestion
		if q == "" {
			q = defaultClarifyQuestion
		}
		resp.Status = StatusNeedsClarification
		resp.Clarification = &Clarification{Question: q, Field: FieldGeneral}

	case td.Confidence < s.minConfidence:
		q := lowConfidenceQuestion
		if td.Confidence >= s.clarificationThreshold && llmQuestion != "" {
			q = llmQuestion
		}
		resp.Status = StatusNeedsClarification
		resp.Clarification = &Clarification{Question: q, Field: FieldGeneral}

	default:
		resp.Status = StatusComplete
		resp.Tasks = []TaskData{td}
	}
	return resp
}

// Process runs language resolution, extraction and the decision for one
// request. Completed tasks are published when a publisher is configured.
func (s *Service) Process(ctx context.Context, req ProcessRequest) ProcessResponse {
	start := time.Now()
	log := observability.LoggerFromContext(ctx)

	lang := ResolveLanguage(req.Language, req.Text)
	log.Info("processing task request", slog.String("user_id", req.UserID), slog.String("language", lang))

	td := s.Extract(ctx, req.UserID, req.Text, lang)
	resp := s.Decide(td, lang)

	if resp.Status == StatusComplete && s.publisher != nil {
		ev := ExtractionEvent{UserID: req.UserID, Language: lang, Task: td, ExtractedAt: s.now().UTC()}
		if err := s.publisher.PublishExtraction(ctx, ev); err != nil {
			log.Error("publish extraction failed", slog.Any("err", err))
		}
	}

	resp.ExecutionTimeMS = time.Since(start).Milliseconds()
	return resp
}
