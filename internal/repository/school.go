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

// ErrGradeExists — у ученика уже есть оценка по предмету за эту дату.
var ErrGradeExists = errors.New("grade already exists for this date")

type SchoolRepository struct {
	pool *pgxpool.Pool
}

func NewSchoolRepository(pool *pgxpool.Pool) *SchoolRepository {
	return &SchoolRepository{pool: pool}
}

func (r *SchoolRepository) CreateClass(ctx context.Context, c *model.Class) error {
	defer logger.DeferLogDuration("school.CreateClass", time.Now())()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO classes (id, number, letter, teacher_id, academic_year)
		 VALUES ($1, $2, $3, $4, $5)`,
		c.ID, c.Number, c.Letter, c.TeacherID, c.AcademicYear,
	)
	if err != nil {
		return fmt.Errorf("schoolRepo.CreateClass: %w", err)
	}
	return nil
}

func (r *SchoolRepository) ClassByID(ctx context.Context, id string) (*model.Class, error) {
	defer logger.DeferLogDuration("school.ClassByID", time.Now())()
	c := &model.Class{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, number, letter, teacher_id, academic_year FROM classes WHERE id = $1`, id,
	).Scan(&c.ID, &c.Number, &c.Letter, &c.TeacherID, &c.AcademicYear)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("schoolRepo.ClassByID: %w", err)
	}
	return c, nil
}

// ClassesOfTeacher возвращает классы, где пользователь — классный руководитель.
func (r *SchoolRepository) ClassesOfTeacher(ctx context.Context, teacherID string) ([]model.Class, error) {
	defer logger.DeferLogDuration("school.ClassesOfTeacher", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT id, number, letter, teacher_id, academic_year
		 FROM classes WHERE teacher_id = $1 ORDER BY number, letter`, teacherID,
	)
	if err != nil {
		return nil, fmt.Errorf("schoolRepo.ClassesOfTeacher query: %w", err)
	}
	defer rows.Close()

	out := make([]model.Class, 0, 4)
	for rows.Next() {
		var c model.Class
		if err := rows.Scan(&c.ID, &c.Number, &c.Letter, &c.TeacherID, &c.AcademicYear); err != nil {
			return nil, fmt.Errorf("schoolRepo.ClassesOfTeacher scan: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("schoolRepo.ClassesOfTeacher rows: %w", err)
	}
	return out, nil
}

// ClassOfStudent находит класс ученика по его профилю (номер + литера).
func (r *SchoolRepository) ClassOfStudent(ctx context.Context, studentID string) (*model.Class, error) {
	defer logger.DeferLogDuration("school.ClassOfStudent", time.Now())()
	c := &model.Class{}
	err := r.pool.QueryRow(ctx,
		`SELECT c.id, c.number, c.letter, c.teacher_id, c.academic_year
		 FROM classes c
		 JOIN profiles p ON p.class_number = c.number AND p.class_letter = c.letter
		 WHERE p.user_id = $1
		 ORDER BY c.academic_year DESC LIMIT 1`, studentID,
	).Scan(&c.ID, &c.Number, &c.Letter, &c.TeacherID, &c.AcademicYear)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("schoolRepo.ClassOfStudent: %w", err)
	}
	return c, nil
}

func (r *SchoolRepository) CreateSubject(ctx context.Context, s *model.Subject) error {
	defer logger.DeferLogDuration("school.CreateSubject", time.Now())()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO subjects (id, name, teacher_id, description) VALUES ($1, $2, $3, $4)`,
		s.ID, s.Name, s.TeacherID, s.Description,
	)
	if err != nil {
		return fmt.Errorf("schoolRepo.CreateSubject: %w", err)
	}
	return nil
}

func (r *SchoolRepository) Subjects(ctx context.Context, teacherID string) ([]model.Subject, error) {
	defer logger.DeferLogDuration("school.Subjects", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, teacher_id, description FROM subjects
		 WHERE $1 = '' OR teacher_id = $1
		 ORDER BY name`, teacherID,
	)
	if err != nil {
		return nil, fmt.Errorf("schoolRepo.Subjects query: %w", err)
	}
	defer rows.Close()

	out := make([]model.Subject, 0, 16)
	for rows.Next() {
		var s model.Subject
		if err := rows.Scan(&s.ID, &s.Name, &s.TeacherID, &s.Description); err != nil {
			return nil, fmt.Errorf("schoolRepo.Subjects scan: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("schoolRepo.Subjects rows: %w", err)
	}
	return out, nil
}

func (r *SchoolRepository) CreateSchedule(ctx context.Context, s *model.Schedule) error {
	defer logger.DeferLogDuration("school.CreateSchedule", time.Now())()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO schedules (id, class_id, subject_id, day_of_week, start_time, end_time, room)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		s.ID, s.ClassID, s.SubjectID, s.DayOfWeek, s.StartTime, s.EndTime, s.Room,
	)
	if err != nil {
		return fmt.Errorf("schoolRepo.CreateSchedule: %w", err)
	}
	return nil
}

// ScheduleForClass — сетка уроков класса на неделю; dayOfWeek == 0 — вся неделя.
func (r *SchoolRepository) ScheduleForClass(ctx context.Context, classID string, dayOfWeek int) ([]model.Schedule, error) {
	defer logger.DeferLogDuration("school.ScheduleForClass", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT s.id, s.class_id, s.subject_id, sub.name, s.day_of_week,
		        to_char(s.start_time, 'HH24:MI'), to_char(s.end_time, 'HH24:MI'), s.room
		 FROM schedules s
		 JOIN subjects sub ON sub.id = s.subject_id
		 WHERE s.class_id = $1 AND ($2 = 0 OR s.day_of_week = $2)
		 ORDER BY s.day_of_week, s.start_time`, classID, dayOfWeek,
	)
	if err != nil {
		return nil, fmt.Errorf("schoolRepo.ScheduleForClass query: %w", err)
	}
	defer rows.Close()

	out := make([]model.Schedule, 0, 16)
	for rows.Next() {
		var s model.Schedule
		if err := rows.Scan(&s.ID, &s.ClassID, &s.SubjectID, &s.SubjectName, &s.DayOfWeek, &s.StartTime, &s.EndTime, &s.Room); err != nil {
			return nil, fmt.Errorf("schoolRepo.ScheduleForClass scan: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("schoolRepo.ScheduleForClass rows: %w", err)
	}
	return out, nil
}

func (r *SchoolRepository) CreateGrade(ctx context.Context, g *model.Grade) error {
	defer logger.DeferLogDuration("school.CreateGrade", time.Now())()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO grades (id, student_id, subject_id, value, grade_date, comment)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		g.ID, g.StudentID, g.SubjectID, g.Value, g.Date, g.Comment,
	)
	if isUniqueViolation(err) {
		return ErrGradeExists
	}
	if err != nil {
		return fmt.Errorf("schoolRepo.CreateGrade: %w", err)
	}
	return nil
}

// GradesOfStudent — оценки ученика за период; subjectID == "" — все предметы.
func (r *SchoolRepository) GradesOfStudent(ctx context.Context, studentID, subjectID string, from, to time.Time) ([]model.Grade, error) {
	defer logger.DeferLogDuration("school.GradesOfStudent", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT g.id, g.student_id, g.subject_id, sub.name, g.value, g.grade_date, g.comment
		 FROM grades g
		 JOIN subjects sub ON sub.id = g.subject_id
		 WHERE g.student_id = $1
		   AND ($2 = '' OR g.subject_id::text = $2)
		   AND g.grade_date BETWEEN $3 AND $4
		 ORDER BY g.grade_date DESC`, studentID, subjectID, from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("schoolRepo.GradesOfStudent query: %w", err)
	}
	defer rows.Close()

	out := make([]model.Grade, 0, 32)
	for rows.Next() {
		var g model.Grade
		if err := rows.Scan(&g.ID, &g.StudentID, &g.SubjectID, &g.SubjectName, &g.Value, &g.Date, &g.Comment); err != nil {
			return nil, fmt.Errorf("schoolRepo.GradesOfStudent scan: %w", err)
		}
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("schoolRepo.GradesOfStudent rows: %w", err)
	}
	return out, nil
}

// AverageGrade — средний балл ученика по предмету; 0 при отсутствии оценок.
func (r *SchoolRepository) AverageGrade(ctx context.Context, studentID, subjectID string) (float64, error) {
	defer logger.DeferLogDuration("school.AverageGrade", time.Now())()
	var avg float64
	err := r.pool.QueryRow(ctx,
		`SELECT COALESCE(AVG(value), 0) FROM grades
		 WHERE student_id = $1 AND ($2 = '' OR subject_id::text = $2)`, studentID, subjectID,
	).Scan(&avg)
	if err != nil {
		return 0, fmt.Errorf("schoolRepo.AverageGrade: %w", err)
	}
	return avg, nil
}
