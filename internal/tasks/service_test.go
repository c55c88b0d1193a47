package tasks

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/suPer8Hu/agent-services/internal/ai"
	"github.com/suPer8Hu/agent-services/internal/reference"
)

type scriptedProvider struct {
	reply  string
	err    error
	prompt string
}

func (p *scriptedProvider) Chat(ctx context.Context, messages []ai.Message) (string, error) {
	if len(messages) > 0 {
		p.prompt = messages[len(messages)-1].Content
	}
	return p.reply, p.err
}

type staticData struct {
	data  map[string]any
	err   error
	calls int
}

func (d *staticData) Get(ctx context.Context, force bool) (map[string]any, error) {
	d.calls++
	return d.data, d.err
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []ExtractionEvent
	err    error
}

func (p *recordingPublisher) PublishExtraction(ctx context.Context, ev ExtractionEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

type userMap map[string]*reference.UserProfile

func (m userMap) GetUserByID(ctx context.Context, id string) (*reference.UserProfile, error) {
	if u, ok := m[id]; ok {
		return u, nil
	}
	return nil, gorm.ErrRecordNotFound
}

const goodReply = `{"title":"Pour slab","description":"Pour the level 2 slab","priority":"high","taskType":"task","projectId":"p1","tags":["concrete"],"confidence":0.9,"needsClarification":false}`

func TestParseTaskData_FencedEqualsBare(t *testing.T) {
	bare, err := ParseTaskData(goodReply)
	if err != nil {
		t.Fatalf("bare: %v", err)
	}
	for _, wrapped := range []string{
		"```json\n" + goodReply + "\n```",
		"```\n" + goodReply + "\n```",
		"  ```json\n" + goodReply + "```  ",
		"Here you go:\n" + goodReply,
	} {
		fenced, err := ParseTaskData(wrapped)
		if err != nil {
			t.Fatalf("fenced %q: %v", wrapped, err)
		}
		if fenced.Title != bare.Title || fenced.Priority != bare.Priority || fenced.Confidence != bare.Confidence ||
			*fenced.ProjectID != *bare.ProjectID || strings.Join(fenced.Tags, ",") != strings.Join(bare.Tags, ",") {
			t.Fatalf("fenced parse differs: %+v vs %+v", fenced, bare)
		}
	}
}

func TestParseTaskData_DefaultsAndAbsentFields(t *testing.T) {
	td, err := ParseTaskData(`{"title":"Fix door","confidence":0.8}`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if td.Priority != "medium" || td.TaskType != "task" {
		t.Fatalf("unexpected defaults: %+v", td)
	}
	if td.Tags == nil || len(td.Tags) != 0 {
		t.Fatalf("expected empty tags, got %v", td.Tags)
	}
	if td.DueDate != nil || td.ProjectID != nil || td.EstimatedHours != nil {
		t.Fatalf("optional fields must stay absent: %+v", td)
	}
}

func TestParseTaskData_Malformed(t *testing.T) {
	cases := map[string]string{
		"not json":           "sure, I can help",
		"missing confidence": `{"title":"x"}`,
		"confidence high":    `{"title":"x","confidence":1.5}`,
		"confidence low":     `{"title":"x","confidence":-0.1}`,
		"bad priority":       `{"title":"x","priority":"asap","confidence":0.9}`,
		"bad taskType":       `{"title":"x","taskType":"epic","confidence":0.9}`,
		"missing title":      `{"confidence":0.9}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseTaskData(raw); !errors.Is(err, ErrMalformedOutput) {
				t.Fatalf("expected ErrMalformedOutput, got %v", err)
			}
		})
	}

	// a clarification request may come without a title
	if _, err := ParseTaskData(`{"confidence":0.2,"needsClarification":true}`); err != nil {
		t.Fatalf("clarification without title: %v", err)
	}
}

func TestFallbackTask(t *testing.T) {
	text := strings.Repeat("א", 60)
	fb := FallbackTask(text)
	if len([]rune(fb.Title)) != 50 {
		t.Fatalf("expected 50 rune title, got %d", len([]rune(fb.Title)))
	}
	if fb.Description == nil || *fb.Description != text {
		t.Fatalf("unexpected description")
	}
	if fb.Confidence != 0.3 || !fb.NeedsClarification || fb.Priority != "medium" || fb.TaskType != "task" {
		t.Fatalf("unexpected fallback: %+v", fb)
	}
	if fb.ClarificationQuestion == nil || *fb.ClarificationQuestion != "Could you provide more details about this task?" {
		t.Fatalf("unexpected question")
	}
}

func TestDetectLanguage(t *testing.T) {
	cases := map[string]string{
		"":                          "en",
		"1234 !!":                   "en",
		"Fix the door":              "en",
		"תקן את הדלת":               "he",
		"תקן door":                  "he",
		"please fix the door ASAP ת": "en",
	}
	for in, want := range cases {
		if got := DetectLanguage(in); got != want {
			t.Fatalf("DetectLanguage(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestResolveLanguage(t *testing.T) {
	if got := ResolveLanguage("he-IL", "fix the door"); got != "he" {
		t.Fatalf("expected he, got %q", got)
	}
	if got := ResolveLanguage("EN", "תקן את הדלת"); got != "en" {
		t.Fatalf("expected en, got %q", got)
	}
	if got := ResolveLanguage("!!", "תקן את הדלת"); got != "he" {
		t.Fatalf("expected detection fallback, got %q", got)
	}
}

func TestBuildPrompt_LimitsAndContent(t *testing.T) {
	var projects []any
	for i := 0; i < 25; i++ {
		projects = append(projects, map[string]any{"id": "p" + string(rune('a'+i)), "name": "Project"})
	}
	snapshot := map[string]any{
		"projects": projects,
		"teams":    []any{map[string]any{"name": "Crew", "specialty": "concrete", "department_name": nil}},
	}
	dept := "Structures"
	prompt := BuildPrompt("pour slab", "en", snapshot, &reference.UserProfile{DisplayName: "Dana", JobTitle: "Foreman", DepartmentName: &dept})

	if n := strings.Count(prompt, "- Project (ID:"); n != 20 {
		t.Fatalf("expected 20 projects, got %d", n)
	}
	if !strings.Contains(prompt, "AVAILABLE MISSIONS:\nNone") {
		t.Fatalf("expected empty missions marker")
	}
	if !strings.Contains(prompt, "- Crew (concrete) - N/A") {
		t.Fatalf("expected team line with N/A department")
	}
	if !strings.Contains(prompt, "Dana (Foreman), department: Structures") {
		t.Fatalf("expected requester line")
	}
	if !strings.Contains(prompt, `"pour slab"`) {
		t.Fatalf("expected quoted user input")
	}
}

func newTestService(p ai.Provider, data DataSource, opts ...Option) *Service {
	return NewService(p, data, 0.7, 0.5, opts...)
}

func TestProcess_Complete(t *testing.T) {
	prov := &scriptedProvider{reply: "```json\n" + goodReply + "\n```"}
	data := &staticData{data: map[string]any{"projects": []any{map[string]any{"id": "p1", "name": "Tower A"}}}}
	pub := &recordingPublisher{}
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	svc := newTestService(prov, data, WithPublisher(pub), WithClock(func() time.Time { return fixed }))

	resp := svc.Process(context.Background(), ProcessRequest{UserID: "u1", Text: "pour the slab tomorrow"})
	if resp.Status != StatusComplete || resp.Intent != IntentCreate || resp.Language != "en" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if len(resp.Tasks) != 1 || resp.Tasks[0].Title != "Pour slab" {
		t.Fatalf("unexpected tasks: %+v", resp.Tasks)
	}
	if resp.Clarification != nil {
		t.Fatalf("complete response must not carry a clarification")
	}
	if !strings.Contains(prov.prompt, "Tower A (ID: p1)") {
		t.Fatalf("prompt should include reference data")
	}
	if len(pub.events) != 1 || pub.events[0].UserID != "u1" || !pub.events[0].ExtractedAt.Equal(fixed) {
		t.Fatalf("unexpected events: %+v", pub.events)
	}
}

func TestProcess_PublishFailureIsIgnored(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	svc := newTestService(&scriptedProvider{reply: goodReply}, nil, WithPublisher(pub))

	resp := svc.Process(context.Background(), ProcessRequest{UserID: "u1", Text: "pour slab"})
	if resp.Status != StatusComplete {
		t.Fatalf("publish failure must not change the response: %+v", resp)
	}
}

func TestProcess_NeedsClarificationFromModel(t *testing.T) {
	svc := newTestService(&scriptedProvider{reply: `{"title":"","confidence":0.4,"needsClarification":true,"clarificationQuestion":"Which floor?"}`}, nil)

	resp := svc.Process(context.Background(), ProcessRequest{UserID: "u1", Text: "fix it"})
	if resp.Status != StatusNeedsClarification || resp.Clarification == nil {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.Clarification.Question != "Which floor?" || resp.Clarification.Field != "general" {
		t.Fatalf("unexpected clarification: %+v", resp.Clarification)
	}
	if resp.Tasks != nil {
		t.Fatalf("clarification must not carry tasks")
	}

	svc = newTestService(&scriptedProvider{reply: `{"title":"x","confidence":0.9,"needsClarification":true}`}, nil)
	resp = svc.Process(context.Background(), ProcessRequest{UserID: "u1", Text: "fix it"})
	if resp.Clarification.Question != "Could you provide more details?" {
		t.Fatalf("expected default question, got %q", resp.Clarification.Question)
	}
}

func TestProcess_LowConfidence(t *testing.T) {
	cases := []struct {
		name  string
		reply string
		want  string
	}{
		{"below threshold", `{"title":"x","confidence":0.3,"clarificationQuestion":"Which room?"}`, "Could you provide more specific details about this task?"},
		{"between threshold and min", `{"title":"x","confidence":0.6,"clarificationQuestion":"Which room?"}`, "Which room?"},
		{"between without question", `{"title":"x","confidence":0.6}`, "Could you provide more specific details about this task?"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := newTestService(&scriptedProvider{reply: tc.reply}, nil)
			resp := svc.Process(context.Background(), ProcessRequest{UserID: "u1", Text: "fix"})
			if resp.Status != StatusNeedsClarification || resp.Clarification.Question != tc.want {
				t.Fatalf("unexpected response: %+v", resp)
			}
		})
	}
}

func TestProcess_FallbackOnFailures(t *testing.T) {
	cases := map[string]ai.Provider{
		"llm error":    &scriptedProvider{err: errors.New("quota exceeded")},
		"garbage":      &scriptedProvider{reply: "I cannot do that"},
		"unconfigured": nil,
	}
	for name, prov := range cases {
		t.Run(name, func(t *testing.T) {
			pub := &recordingPublisher{}
			svc := newTestService(prov, nil, WithPublisher(pub))
			resp := svc.Process(context.Background(), ProcessRequest{UserID: "u1", Text: "תקן את הדלת בקומה 2"})
			if resp.Status != StatusNeedsClarification {
				t.Fatalf("expected clarification, got %+v", resp)
			}
			if resp.Clarification.Question != "Could you provide more details about this task?" {
				t.Fatalf("unexpected question %q", resp.Clarification.Question)
			}
			if resp.Language != "he" {
				t.Fatalf("expected detected hebrew, got %q", resp.Language)
			}
			if len(pub.events) != 0 {
				t.Fatalf("fallbacks must not be published")
			}
		})
	}
}

func TestExtract_EmptyCacheStillAnswers(t *testing.T) {
	prov := &scriptedProvider{reply: goodReply}
	data := &staticData{err: errors.New("no reference data")}
	svc := newTestService(prov, data)

	td := svc.Extract(context.Background(), "u1", "pour slab", "en")
	if td.Title != "Pour slab" {
		t.Fatalf("unexpected task %+v", td)
	}
	if data.calls != 1 {
		t.Fatalf("expected one cache read, got %d", data.calls)
	}
	if !strings.Contains(prov.prompt, "AVAILABLE PROJECTS:\nNone") {
		t.Fatalf("prompt should render an empty snapshot")
	}
}

func TestExtract_UsesRequesterProfile(t *testing.T) {
	prov := &scriptedProvider{reply: goodReply}
	users := userMap{"u1": {ID: "u1", DisplayName: "Dana", JobTitle: "Engineer"}}
	svc := newTestService(prov, nil, WithUserLookup(users))

	svc.Extract(context.Background(), "u1", "pour slab", "en")
	if !strings.Contains(prov.prompt, "Dana (Engineer)") {
		t.Fatalf("prompt should mention requester")
	}
	svc.Extract(context.Background(), "ghost", "pour slab", "en")
	if strings.Contains(prov.prompt, "REQUESTED BY") {
		t.Fatalf("unknown requester must be skipped")
	}
}

func TestNewService_ClampsThresholds(t *testing.T) {
	svc := NewService(nil, nil, 0, 0.9)
	if svc.minConfidence != 0.7 || svc.clarificationThreshold != 0.7 {
		t.Fatalf("unexpected thresholds %v %v", svc.minConfidence, svc.clarificationThreshold)
	}
	if svc.Available() {
		t.Fatalf("nil provider should be unavailable")
	}
}

func TestRecordRepo_SaveAndList(t *testing.T) {
	db, err := gorm.Open(gormsqlite.Open("file:task_records?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	repo := NewRecordRepo(db)
	if err := repo.AutoMigrate(); err != nil {
		t.Fatalf("automigrate: %v", err)
	}

	td, _ := ParseTaskData(goodReply)
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		ev := ExtractionEvent{UserID: "u1", Language: "en", Task: td, ExtractedAt: base.Add(time.Duration(i) * time.Minute)}
		if _, err := repo.Save(context.Background(), ev); err != nil {
			t.Fatalf("save: %v", err)
		}
	}
	if _, err := repo.Save(context.Background(), ExtractionEvent{Task: td}); err == nil {
		t.Fatalf("expected validation error")
	}

	recs, err := repo.ListByUser(context.Background(), "u1", 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(recs) != 2 || !recs[0].ExtractedAt.After(recs[1].ExtractedAt) {
		t.Fatalf("unexpected records: %+v", recs)
	}
	if recs[0].ProjectID == nil || *recs[0].ProjectID != "p1" || !strings.Contains(recs[0].Payload, `"title":"Pour slab"`) {
		t.Fatalf("unexpected record content: %+v", recs[0])
	}
}
