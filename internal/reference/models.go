package reference

import (
	"gorm.io/gorm"
)

type Department struct {
	ID        string         `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Name      string         `gorm:"type:varchar(255);not null" json:"name"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Department) TableName() string { return "departments" }

type Project struct {
	ID          string         `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Name        string         `gorm:"type:varchar(255);not null" json:"name"`
	Description string         `gorm:"type:text" json:"description"`
	Status      string         `gorm:"type:varchar(32)" json:"status"`
	Priority    string         `gorm:"type:varchar(16)" json:"priority"`
	Location    string         `gorm:"type:varchar(255)" json:"location"`
	ManagerID   *string        `gorm:"type:varchar(64)" json:"manager_id"`
	Progress    float64        `json:"progress"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Project) TableName() string { return "projects" }

type Stage struct {
	ID          string  `gorm:"primaryKey;type:varchar(64)" json:"id"`
	ProjectID   string  `gorm:"type:varchar(64);index;not null" json:"project_id"`
	Name        string  `gorm:"type:varchar(255);not null" json:"name"`
	Description string  `gorm:"type:text" json:"description"`
	StageOrder  int     `json:"stage_order"`
	Status      string  `gorm:"type:varchar(32)" json:"status"`
	Progress    float64 `json:"progress"`
}

func (Stage) TableName() string { return "project_stages" }

type Mission struct {
	ID          string         `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Name        string         `gorm:"type:varchar(255);not null" json:"name"`
	Description string         `gorm:"type:text" json:"description"`
	ProjectID   string         `gorm:"type:varchar(64);index" json:"project_id"`
	StageID     *string        `gorm:"type:varchar(64)" json:"stage_id"`
	Status      string         `gorm:"type:varchar(32)" json:"status"`
	Priority    string         `gorm:"type:varchar(16)" json:"priority"`
	Progress    float64        `json:"progress"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Mission) TableName() string { return "missions" }

type Team struct {
	ID           string         `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Name         string         `gorm:"type:varchar(255);not null" json:"name"`
	Description  string         `gorm:"type:text" json:"description"`
	Specialty    string         `gorm:"type:varchar(255)" json:"specialty"`
	DepartmentID *string        `gorm:"type:varchar(64)" json:"department_id"`
	LeaderID     *string        `gorm:"type:varchar(64)" json:"leader_id"`
	IsActive     bool           `gorm:"not null;default:true" json:"is_active"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Team) TableName() string { return "teams" }

type User struct {
	ID           string         `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Username     string         `gorm:"type:varchar(64);uniqueIndex" json:"username"`
	DisplayName  string         `gorm:"type:varchar(255)" json:"display_name"`
	JobTitle     string         `gorm:"type:varchar(255)" json:"job_title"`
	DepartmentID *string        `gorm:"type:varchar(64)" json:"department_id"`
	Role         string         `gorm:"type:varchar(32)" json:"role"`
	Language     string         `gorm:"type:varchar(8)" json:"language"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

func (User) TableName() string { return "users" }

// TeamRow is a team joined with its department name.
type TeamRow struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Description    string  `json:"description"`
	Specialty      string  `json:"specialty"`
	DepartmentID   *string `json:"department_id"`
	LeaderID       *string `json:"leader_id"`
	DepartmentName *string `json:"department_name"`
}

// UserProfile is a user joined with its department name.
type UserProfile struct {
	ID             string  `json:"id"`
	Username       string  `json:"username"`
	DisplayName    string  `json:"display_name"`
	JobTitle       string  `json:"job_title"`
	DepartmentID   *string `json:"department_id"`
	Role           string  `json:"role"`
	Language       string  `json:"language"`
	DepartmentName *string `json:"department_name"`
}

// AllModels lists the tables the repo reads, for AutoMigrate in dev and tests.
func AllModels() []any {
	return []any{&Department{}, &Project{}, &Stage{}, &Mission{}, &Team{}, &User{}}
}
