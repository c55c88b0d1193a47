package refcache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/suPer8Hu/agent-services/internal/reference"
)

// RepoFetcher builds the same snapshot shape as the backend API straight from
// the reference tables.
type RepoFetcher struct {
	repo *reference.Repo
}

func NewRepoFetcher(repo *reference.Repo) *RepoFetcher {
	return &RepoFetcher{repo: repo}
}

func (f *RepoFetcher) Fetch(ctx context.Context) (map[string]any, error) {
	projects, err := f.repo.ListProjects(ctx)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	stages, err := f.repo.ListStages(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("list stages: %w", err)
	}
	missions, err := f.repo.ListMissions(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("list missions: %w", err)
	}
	teams, err := f.repo.ListTeams(ctx)
	if err != nil {
		return nil, fmt.Errorf("list teams: %w", err)
	}
	departments, err := f.repo.ListDepartments(ctx)
	if err != nil {
		return nil, fmt.Errorf("list departments: %w", err)
	}
	users, err := f.repo.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	// Round-trip through JSON so consumers see the same generic shape the
	// backend API produces.
	b, err := json.Marshal(map[string]any{
		"projects":    projects,
		"stages":      stages,
		"missions":    missions,
		"teams":       teams,
		"departments": departments,
		"users":       users,
	})
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}
