package tasks

import (
	"fmt"
	"strings"

	"github.com/suPer8Hu/agent-services/internal/reference"
)

const (
	maxPromptProjects = 20
	maxPromptMissions = 30
	maxPromptTeams    = 30
)

// snapshotList returns the entries of snapshot[key] that are JSON objects.
func snapshotList(snapshot map[string]any, key string, limit int) []map[string]any {
	raw, _ := snapshot[key].([]any)
	out := make([]map[string]any, 0, min(len(raw), limit))
	for _, item := range raw {
		if len(out) == limit {
			break
		}
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

func str(m map[string]any, key, def string) string {
	v, ok := m[key]
	if !ok || v == nil {
		return def
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func bulletList(lines []string) string {
	if len(lines) == 0 {
		return "None"
	}
	return strings.Join(lines, "\n")
}

// BuildPrompt renders the extraction prompt for text using the reference
// snapshot. requester is optional.
func BuildPrompt(text, lang string, snapshot map[string]any, requester *reference.UserProfile) string {
	var projects, missions, teams []string
	for _, p := range snapshotList(snapshot, "projects", maxPromptProjects) {
		projects = append(projects, fmt.Sprintf("- %s (ID: %s)", str(p, "name", ""), str(p, "id", "")))
	}
	for _, m := range snapshotList(snapshot, "missions", maxPromptMissions) {
		missions = append(missions, fmt.Sprintf("- %s (ID: %s, Project: %s)",
			str(m, "name", ""), str(m, "id", ""), str(m, "project_id", "")))
	}
	for _, t := range snapshotList(snapshot, "teams", maxPromptTeams) {
		teams = append(teams, fmt.Sprintf("- %s (%s) - %s",
			str(t, "name", ""), str(t, "specialty", "N/A"), str(t, "department_name", "N/A")))
	}

	var b strings.Builder
	b.WriteString("You are a Task Management Agent for a construction project management system.\n")
	b.WriteString("Turn the user's request into one structured task and answer with JSON only.\n\n")

	fmt.Fprintf(&b, "AVAILABLE PROJECTS:\n%s\n\n", bulletList(projects))
	fmt.Fprintf(&b, "AVAILABLE MISSIONS:\n%s\n\n", bulletList(missions))
	fmt.Fprintf(&b, "AVAILABLE TEAMS:\n%s\n\n", bulletList(teams))

	if requester != nil {
		dept := "N/A"
		if requester.DepartmentName != nil {
			dept = *requester.DepartmentName
		}
		fmt.Fprintf(&b, "REQUESTED BY:\n- %s (%s), department: %s\n\n", requester.DisplayName, requester.JobTitle, dept)
	}

	fmt.Fprintf(&b, "USER INPUT (language: %s):\n%q\n\n", lang, text)

	b.WriteString(`Return a JSON object with these fields:
{
  "title": "short task title",
  "description": "full description",
  "priority": "low|medium|high|urgent",
  "taskType": "task|subtask|job",
  "dueDate": "YYYY-MM-DD or null",
  "startDate": "YYYY-MM-DDTHH:MM:SS or null",
  "estimatedHours": number or null,
  "actualHours": number or null,
  "suggestedTeamId": "team id or null",
  "suggestedAssigneeId": "user id or null",
  "missionId": "mission id or null",
  "projectId": "project id or null",
  "stageId": "stage id or null",
  "tags": ["tag"],
  "isRetrospective": true|false,
  "confidence": 0.0-1.0,
  "needsClarification": true|false,
  "clarificationQuestion": "question or null"
}

RULES:
1. Past-tense requests ("yesterday", "took 3 hours") are retrospective: set isRetrospective=true.
2. taskType: "job" for quick unplanned work, "subtask" for part of a larger task, "task" for planned multi-day work.
3. Match missions and projects by name and keywords, and suggest a team by specialty.
4. Add a 20% buffer to time estimates.
5. If confidence is below 0.7, set needsClarification=true and ask one clarificationQuestion.
6. Resolve relative dates from the text.
`)
	fmt.Fprintf(&b, "7. Write every text field in %s.\n\n", lang)
	b.WriteString("Return ONLY valid JSON, no markdown, no explanations.")
	return b.String()
}
