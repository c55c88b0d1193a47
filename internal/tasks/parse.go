package tasks

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedOutput is returned when the model reply is not a usable task.
var ErrMalformedOutput = errors.New("tasks: malformed model output")

const (
	fallbackConfidence = 0.3
	fallbackTitleRunes = 50
	fallbackQuestion   = "Could you provide more details about this task?"
)

// StripCodeFence removes a surrounding markdown code fence and any prose
// around the outermost JSON object.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		if i := strings.IndexByte(s, '\n'); i >= 0 {
			s = s[i+1:]
		} else {
			s = strings.TrimPrefix(s, "```")
		}
		s = strings.TrimSpace(s)
		s = strings.TrimSuffix(s, "```")
		s = strings.TrimSpace(s)
	}
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start >= 0 && end > start {
		s = s[start : end+1]
	}
	return s
}

// ParseTaskData decodes a model reply into a TaskData, applying defaults for
// priority, taskType and tags.
func ParseTaskData(raw string) (TaskData, error) {
	var decoded struct {
		TaskData
		Confidence *float64 `json:"confidence"`
	}
	body := StripCodeFence(raw)
	if err := json.Unmarshal([]byte(body), &decoded); err != nil {
		return TaskData{}, fmt.Errorf("%w: %w", ErrMalformedOutput, err)
	}

	td := decoded.TaskData
	if decoded.Confidence == nil {
		return TaskData{}, fmt.Errorf("%w: missing confidence", ErrMalformedOutput)
	}
	td.Confidence = *decoded.Confidence
	if td.Confidence < 0 || td.Confidence > 1 {
		return TaskData{}, fmt.Errorf("%w: confidence %v out of range", ErrMalformedOutput, td.Confidence)
	}

	td.Priority = strings.ToLower(strings.TrimSpace(td.Priority))
	if td.Priority == "" {
		td.Priority = "medium"
	}
	if !validPriorities[td.Priority] {
		return TaskData{}, fmt.Errorf("%w: priority %q", ErrMalformedOutput, td.Priority)
	}

	td.TaskType = strings.ToLower(strings.TrimSpace(td.TaskType))
	if td.TaskType == "" {
		td.TaskType = "task"
	}
	if !validTaskTypes[td.TaskType] {
		return TaskData{}, fmt.Errorf("%w: taskType %q", ErrMalformedOutput, td.TaskType)
	}

	if td.Tags == nil {
		td.Tags = []string{}
	}
	td.Title = strings.TrimSpace(td.Title)
	if td.Title == "" && !td.NeedsClarification {
		return TaskData{}, fmt.Errorf("%w: missing title", ErrMalformedOutput)
	}
	return td, nil
}

// FallbackTask is the low-confidence record returned when the model fails or
// its reply cannot be parsed.
func FallbackTask(text string) TaskData {
	title := text
	if r := []rune(text); len(r) > fallbackTitleRunes {
		title = string(r[:fallbackTitleRunes])
	}
	desc := text
	q := fallbackQuestion
	return TaskData{
		Title:                 title,
		Description:           &desc,
		Priority:              "medium",
		TaskType:              "task",
		Tags:                  []string{},
		Confidence:            fallbackConfidence,
		NeedsClarification:    true,
		ClarificationQuestion: &q,
	}
}
