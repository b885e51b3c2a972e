package model

import "time"

type ProjectStatus string

const (
	ProjectStatusActive    ProjectStatus = "active"
	ProjectStatusCompleted ProjectStatus = "completed"
	ProjectStatusArchived  ProjectStatus = "archived"
)

type ProjectPriority string

const (
	ProjectPriorityLow    ProjectPriority = "low"
	ProjectPriorityMedium ProjectPriority = "medium"
	ProjectPriorityHigh   ProjectPriority = "high"
)

type TaskStatus string

const (
	TaskStatusNew        TaskStatus = "new"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusDone       TaskStatus = "done"
)

type ProjectMemberRole string

const (
	ProjectMemberLead   ProjectMemberRole = "lead"
	ProjectMemberMember ProjectMemberRole = "member"
)

// Project — школьный проект с генерируемым кодом PN0000001.
type Project struct {
	ID          string          `json:"id"`
	ProjectCode string          `json:"project_code"`
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	StartDate   time.Time       `json:"start_date"`
	EndDate     *time.Time      `json:"end_date,omitempty"`
	Status      ProjectStatus   `json:"status"`
	Priority    ProjectPriority `json:"priority"`
	AvatarURL   string          `json:"avatar_url,omitempty"`
}

type ProjectMember struct {
	ProjectID string            `json:"project_id"`
	StudentID string            `json:"student_id"`
	Role      ProjectMemberRole `json:"role"`
}

type ProjectTask struct {
	ID          string     `json:"id"`
	ProjectID   string     `json:"project_id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Status      TaskStatus `json:"status"`
	AssignedTo  *string    `json:"assigned_to,omitempty"`
	Deadline    *time.Time `json:"deadline,omitempty"`
}

// Event — школьное мероприятие на главной странице.
type Event struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Date        time.Time `json:"date"`
	Time        string    `json:"time"`
	Location    string    `json:"location"`
	OrganizerID *string   `json:"organizer_id,omitempty"`
}
