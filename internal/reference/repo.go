package reference

import (
	"context"

	"gorm.io/gorm"
)

// Repo reads the task-management reference tables directly. Most requests
// are served from the backend API snapshot; these helpers back the database
// snapshot source and requester lookups.
type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

// ListProjects returns active projects ordered by name.
func (r *Repo) ListProjects(ctx context.Context) ([]Project, error) {
	var out []Project
	if err := r.db.WithContext(ctx).Order("name").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// ListStages returns stages in stage order. An empty projectID lists all projects' stages.
func (r *Repo) ListStages(ctx context.Context, projectID string) ([]Stage, error) {
	q := r.db.WithContext(ctx)
	if projectID != "" {
		q = q.Where("project_id = ?", projectID).Order("stage_order")
	} else {
		q = q.Order("project_id").Order("stage_order")
	}

	var out []Stage
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// ListMissions returns active missions ordered by name, optionally for one project.
func (r *Repo) ListMissions(ctx context.Context, projectID string) ([]Mission, error) {
	q := r.db.WithContext(ctx).Order("name")
	if projectID != "" {
		q = q.Where("project_id = ?", projectID)
	}

	var out []Mission
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repo) ListDepartments(ctx context.Context) ([]Department, error) {
	var out []Department
	if err := r.db.WithContext(ctx).Order("name").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// ListTeams returns active teams with their department names.
func (r *Repo) ListTeams(ctx context.Context) ([]TeamRow, error) {
	var out []TeamRow
	err := r.db.WithContext(ctx).
		Table("teams AS t").
		Select("t.id, t.name, t.description, t.specialty, t.department_id, t.leader_id, d.name AS department_name").
		Joins("LEFT JOIN departments d ON t.department_id = d.id").
		Where("t.deleted_at IS NULL AND t.is_active = ?", true).
		Order("t.name").
		Scan(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repo) usersQuery(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Table("users AS u").
		Select("u.id, u.username, u.display_name, u.job_title, u.department_id, u.role, u.language, d.name AS department_name").
		Joins("LEFT JOIN departments d ON u.department_id = d.id").
		Where("u.deleted_at IS NULL")
}

// ListUsers returns active users ordered by display name.
func (r *Repo) ListUsers(ctx context.Context) ([]UserProfile, error) {
	var out []UserProfile
	if err := r.usersQuery(ctx).Order("u.display_name").Scan(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// GetUserByID returns gorm.ErrRecordNotFound for unknown or deleted users.
func (r *Repo) GetUserByID(ctx context.Context, id string) (*UserProfile, error) {
	var rows []UserProfile
	if err := r.usersQuery(ctx).Where("u.id = ?", id).Limit(1).Scan(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return &rows[0], nil
}
