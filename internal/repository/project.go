package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ValeZask/EduDiaryGit/internal/logger"
	"github.com/ValeZask/EduDiaryGit/internal/model"
)

type ProjectRepository struct {
	pool *pgxpool.Pool
}

func NewProjectRepository(pool *pgxpool.Pool) *ProjectRepository {
	return &ProjectRepository{pool: pool}
}

// NextProjectCode выдаёт следующий код проекта вида PN0000001 из sequence,
// поэтому коды уникальны и при конкурентном создании.
func (r *ProjectRepository) NextProjectCode(ctx context.Context) (string, error) {
	defer logger.DeferLogDuration("project.NextProjectCode", time.Now())()
	var n int64
	if err := r.pool.QueryRow(ctx, `SELECT nextval('project_code_seq')`).Scan(&n); err != nil {
		return "", fmt.Errorf("projectRepo.NextProjectCode: %w", err)
	}
	return fmt.Sprintf("PN%07d", n), nil
}

func (r *ProjectRepository) Create(ctx context.Context, p *model.Project) error {
	defer logger.DeferLogDuration("project.Create", time.Now())()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO projects (id, project_code, title, description, start_date, end_date, status, priority, avatar_url)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		p.ID, p.ProjectCode, p.Title, p.Description, p.StartDate, p.EndDate, p.Status, p.Priority, p.AvatarURL,
	)
	if err != nil {
		return fmt.Errorf("projectRepo.Create: %w", err)
	}
	return nil
}

const projectCols = `id, project_code, title, description, start_date, end_date, status, priority, avatar_url`

func scanProject(s interface{ Scan(dest ...any) error }, p *model.Project) error {
	return s.Scan(&p.ID, &p.ProjectCode, &p.Title, &p.Description, &p.StartDate, &p.EndDate, &p.Status, &p.Priority, &p.AvatarURL)
}

func (r *ProjectRepository) GetByID(ctx context.Context, id string) (*model.Project, error) {
	defer logger.DeferLogDuration("project.GetByID", time.Now())()
	p := &model.Project{}
	row := r.pool.QueryRow(ctx, `SELECT `+projectCols+` FROM projects WHERE id = $1`, id)
	if err := scanProject(row, p); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("projectRepo.GetByID: %w", err)
	}
	return p, nil
}

// List — проекты; status == "" — без фильтра.
func (r *ProjectRepository) List(ctx context.Context, status model.ProjectStatus) ([]model.Project, error) {
	defer logger.DeferLogDuration("project.List", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT `+projectCols+` FROM projects
		 WHERE $1 = '' OR status = $1
		 ORDER BY start_date DESC`, string(status),
	)
	if err != nil {
		return nil, fmt.Errorf("projectRepo.List query: %w", err)
	}
	defer rows.Close()

	out := make([]model.Project, 0, 16)
	for rows.Next() {
		var p model.Project
		if err := scanProject(rows, &p); err != nil {
			return nil, fmt.Errorf("projectRepo.List scan: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("projectRepo.List rows: %w", err)
	}
	return out, nil
}

func (r *ProjectRepository) SetStatus(ctx context.Context, id string, status model.ProjectStatus) error {
	defer logger.DeferLogDuration("project.SetStatus", time.Now())()
	tag, err := r.pool.Exec(ctx, `UPDATE projects SET status = $1 WHERE id = $2`, status, id)
	if err != nil {
		return fmt.Errorf("projectRepo.SetStatus: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ProjectRepository) AddMember(ctx context.Context, m *model.ProjectMember) error {
	defer logger.DeferLogDuration("project.AddMember", time.Now())()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO project_members (project_id, student_id, role) VALUES ($1, $2, $3)
		 ON CONFLICT DO NOTHING`,
		m.ProjectID, m.StudentID, m.Role,
	)
	if err != nil {
		return fmt.Errorf("projectRepo.AddMember: %w", err)
	}
	return nil
}

func (r *ProjectRepository) Members(ctx context.Context, projectID string) ([]model.ProjectMember, error) {
	defer logger.DeferLogDuration("project.Members", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT project_id, student_id, role FROM project_members
		 WHERE project_id = $1 ORDER BY role, student_id`, projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("projectRepo.Members query: %w", err)
	}
	defer rows.Close()

	out := make([]model.ProjectMember, 0, 8)
	for rows.Next() {
		var m model.ProjectMember
		if err := rows.Scan(&m.ProjectID, &m.StudentID, &m.Role); err != nil {
			return nil, fmt.Errorf("projectRepo.Members scan: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("projectRepo.Members rows: %w", err)
	}
	return out, nil
}

func (r *ProjectRepository) CreateTask(ctx context.Context, t *model.ProjectTask) error {
	defer logger.DeferLogDuration("project.CreateTask", time.Now())()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO project_tasks (id, project_id, title, description, status, assigned_to, deadline)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		t.ID, t.ProjectID, t.Title, t.Description, t.Status, t.AssignedTo, t.Deadline,
	)
	if err != nil {
		return fmt.Errorf("projectRepo.CreateTask: %w", err)
	}
	return nil
}

func (r *ProjectRepository) Tasks(ctx context.Context, projectID string) ([]model.ProjectTask, error) {
	defer logger.DeferLogDuration("project.Tasks", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT id, project_id, title, description, status, assigned_to, deadline
		 FROM project_tasks WHERE project_id = $1
		 ORDER BY deadline NULLS LAST, title`, projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("projectRepo.Tasks query: %w", err)
	}
	defer rows.Close()

	out := make([]model.ProjectTask, 0, 16)
	for rows.Next() {
		var t model.ProjectTask
		if err := rows.Scan(&t.ID, &t.ProjectID, &t.Title, &t.Description, &t.Status, &t.AssignedTo, &t.Deadline); err != nil {
			return nil, fmt.Errorf("projectRepo.Tasks scan: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("projectRepo.Tasks rows: %w", err)
	}
	return out, nil
}

func (r *ProjectRepository) SetTaskStatus(ctx context.Context, taskID string, status model.TaskStatus) error {
	defer logger.DeferLogDuration("project.SetTaskStatus", time.Now())()
	tag, err := r.pool.Exec(ctx, `UPDATE project_tasks SET status = $1 WHERE id = $2`, status, taskID)
	if err != nil {
		return fmt.Errorf("projectRepo.SetTaskStatus: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ProjectRepository) CreateEvent(ctx context.Context, e *model.Event) error {
	defer logger.DeferLogDuration("project.CreateEvent", time.Now())()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO events (id, title, description, event_date, event_time, location, organizer_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.ID, e.Title, e.Description, e.Date, e.Time, e.Location, e.OrganizerID,
	)
	if err != nil {
		return fmt.Errorf("projectRepo.CreateEvent: %w", err)
	}
	return nil
}

// UpcomingEvents — ближайшие мероприятия начиная с from.
func (r *ProjectRepository) UpcomingEvents(ctx context.Context, from time.Time, limit int) ([]model.Event, error) {
	defer logger.DeferLogDuration("project.UpcomingEvents", time.Now())()
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	rows, err := r.pool.Query(ctx,
		`SELECT id, title, description, event_date, to_char(event_time, 'HH24:MI'), location, organizer_id
		 FROM events WHERE event_date >= $1
		 ORDER BY event_date, event_time
		 LIMIT $2`, from, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("projectRepo.UpcomingEvents query: %w", err)
	}
	defer rows.Close()

	out := make([]model.Event, 0, limit)
	for rows.Next() {
		var e model.Event
		if err := rows.Scan(&e.ID, &e.Title, &e.Description, &e.Date, &e.Time, &e.Location, &e.OrganizerID); err != nil {
			return nil, fmt.Errorf("projectRepo.UpcomingEvents scan: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("projectRepo.UpcomingEvents rows: %w", err)
	}
	return out, nil
}
