package tasks

const (
	StatusComplete           = "complete"
	StatusNeedsClarification = "needs_clarification"
	// StatusMultipleTasks is part of the response contract but nothing
	// produces it yet.
	StatusMultipleTasks = "multiple_tasks"

	IntentCreate = "create"

	FieldGeneral = "general"
)

var (
	validPriorities = map[string]bool{"low": true, "medium": true, "high": true, "urgent": true}
	validTaskTypes  = map[string]bool{"task": true, "subtask": true, "job": true}
)

type ProcessRequest struct {
	UserID   string         `json:"userId" binding:"required"`
	Text     string         `json:"text" binding:"required"`
	Language string         `json:"language,omitempty"`
	Context  map[string]any `json:"context,omitempty"`
}

// TaskData is one extracted task. Optional fields stay nil unless the model
// supplied them.
type TaskData struct {
	Title                 string   `json:"title"`
	Description           *string  `json:"description,omitempty"`
	Priority              string   `json:"priority"`
	TaskType              string   `json:"taskType"`
	DueDate               *string  `json:"dueDate,omitempty"`
	StartDate             *string  `json:"startDate,omitempty"`
	EstimatedHours        *float64 `json:"estimatedHours,omitempty"`
	ActualHours           *float64 `json:"actualHours,omitempty"`
	SuggestedTeamID       *string  `json:"suggestedTeamId,omitempty"`
	SuggestedAssigneeID   *string  `json:"suggestedAssigneeId,omitempty"`
	MissionID             *string  `json:"missionId,omitempty"`
	ProjectID             *string  `json:"projectId,omitempty"`
	StageID               *string  `json:"stageId,omitempty"`
	Tags                  []string `json:"tags"`
	IsRetrospective       bool     `json:"isRetrospective"`
	Confidence            float64  `json:"confidence"`
	NeedsClarification    bool     `json:"needsClarification"`
	ClarificationQuestion *string  `json:"clarificationQuestion,omitempty"`
}

type Clarification struct {
	Question string   `json:"question"`
	Field    string   `json:"field"`
	Options  []string `json:"options,omitempty"`
}

type MultipleTasksSuggestion struct {
	Message string   `json:"message"`
	Task1   TaskData `json:"task1"`
	Task2   TaskData `json:"task2"`
}

type ProcessResponse struct {
	Intent                  string                   `json:"intent"`
	Status                  string                   `json:"status"`
	Language                string                   `json:"language"`
	Tasks                   []TaskData               `json:"tasks,omitempty"`
	Clarification           *Clarification           `json:"clarification,omitempty"`
	MultipleTasksSuggestion *MultipleTasksSuggestion `json:"multipleTasksSuggestion,omitempty"`
	ExecutionTimeMS         int64                    `json:"execution_time_ms"`
}
