package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ValeZask/EduDiaryGit/internal/logger"
	"github.com/ValeZask/EduDiaryGit/internal/model"
)

type AchievementRepository struct {
	pool *pgxpool.Pool
}

func NewAchievementRepository(pool *pgxpool.Pool) *AchievementRepository {
	return &AchievementRepository{pool: pool}
}

// GetOrCreateCategory — справочник категорий, поиск без учёта регистра.
func (r *AchievementRepository) GetOrCreateCategory(ctx context.Context, name string) (*model.AchievementCategory, error) {
	defer logger.DeferLogDuration("achievement.GetOrCreateCategory", time.Now())()
	id, err := r.getOrCreateRef(ctx, "achievement_categories", name)
	if err != nil {
		return nil, err
	}
	return &model.AchievementCategory{ID: id, Name: name}, nil
}

// GetOrCreatePlace — справочник занятых мест.
func (r *AchievementRepository) GetOrCreatePlace(ctx context.Context, name string) (*model.AchievementPlace, error) {
	defer logger.DeferLogDuration("achievement.GetOrCreatePlace", time.Now())()
	id, err := r.getOrCreateRef(ctx, "achievement_places", name)
	if err != nil {
		return nil, err
	}
	return &model.AchievementPlace{ID: id, Name: name}, nil
}

func (r *AchievementRepository) getOrCreateRef(ctx context.Context, table, name string) (string, error) {
	var id string
	err := r.pool.QueryRow(ctx,
		`SELECT id FROM `+table+` WHERE lower(name) = lower($1)`, name,
	).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("achievementRepo.getOrCreateRef %s: %w", table, err)
	}

	id = uuid.New().String()
	_, err = r.pool.Exec(ctx, `INSERT INTO `+table+` (id, name) VALUES ($1, $2)`, id, name)
	if isUniqueViolation(err) {
		return r.getOrCreateRef(ctx, table, name)
	}
	if err != nil {
		return "", fmt.Errorf("achievementRepo.getOrCreateRef %s: %w", table, err)
	}
	return id, nil
}

func (r *AchievementRepository) Create(ctx context.Context, a *model.Achievement) error {
	defer logger.DeferLogDuration("achievement.Create", time.Now())()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO achievements (id, student_id, title, description, achieved_on, category_id, place_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		a.ID, a.StudentID, a.Title, a.Description, a.Date, a.CategoryID, a.PlaceID,
	)
	if err != nil {
		return fmt.Errorf("achievementRepo.Create: %w", err)
	}
	return nil
}

// ForStudent — достижения ученика от свежих к старым.
func (r *AchievementRepository) ForStudent(ctx context.Context, studentID string) ([]model.Achievement, error) {
	defer logger.DeferLogDuration("achievement.ForStudent", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT a.id, a.student_id, a.title, a.description, a.achieved_on,
		        a.category_id, c.name, a.place_id, p.name
		 FROM achievements a
		 JOIN achievement_categories c ON c.id = a.category_id
		 JOIN achievement_places p ON p.id = a.place_id
		 WHERE a.student_id = $1
		 ORDER BY a.achieved_on DESC`, studentID,
	)
	if err != nil {
		return nil, fmt.Errorf("achievementRepo.ForStudent query: %w", err)
	}
	defer rows.Close()

	out := make([]model.Achievement, 0, 8)
	for rows.Next() {
		var a model.Achievement
		if err := rows.Scan(&a.ID, &a.StudentID, &a.Title, &a.Description, &a.Date,
			&a.CategoryID, &a.CategoryName, &a.PlaceID, &a.PlaceName); err != nil {
			return nil, fmt.Errorf("achievementRepo.ForStudent scan: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("achievementRepo.ForStudent rows: %w", err)
	}
	return out, nil
}

func (r *AchievementRepository) Delete(ctx context.Context, id string) error {
	defer logger.DeferLogDuration("achievement.Delete", time.Now())()
	tag, err := r.pool.Exec(ctx, `DELETE FROM achievements WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("achievementRepo.Delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
