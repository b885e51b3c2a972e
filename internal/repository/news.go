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

type NewsRepository struct {
	pool *pgxpool.Pool
}

func NewNewsRepository(pool *pgxpool.Pool) *NewsRepository {
	return &NewsRepository{pool: pool}
}

// GetOrCreateCategory находит категорию по имени без учёта регистра, при
// отсутствии — создаёт. Гонка двух создателей разрешается повторным чтением.
func (r *NewsRepository) GetOrCreateCategory(ctx context.Context, name string) (*model.NewsCategory, error) {
	defer logger.DeferLogDuration("news.GetOrCreateCategory", time.Now())()
	c, err := r.categoryByName(ctx, name)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	c = &model.NewsCategory{ID: uuid.New().String(), Name: name}
	_, err = r.pool.Exec(ctx, `INSERT INTO news_categories (id, name) VALUES ($1, $2)`, c.ID, c.Name)
	if isUniqueViolation(err) {
		return r.categoryByName(ctx, name)
	}
	if err != nil {
		return nil, fmt.Errorf("newsRepo.GetOrCreateCategory: %w", err)
	}
	return c, nil
}

func (r *NewsRepository) categoryByName(ctx context.Context, name string) (*model.NewsCategory, error) {
	c := &model.NewsCategory{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, name FROM news_categories WHERE lower(name) = lower($1)`, name,
	).Scan(&c.ID, &c.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("newsRepo.categoryByName: %w", err)
	}
	return c, nil
}

func (r *NewsRepository) Categories(ctx context.Context) ([]model.NewsCategory, error) {
	defer logger.DeferLogDuration("news.Categories", time.Now())()
	rows, err := r.pool.Query(ctx, `SELECT id, name FROM news_categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("newsRepo.Categories query: %w", err)
	}
	defer rows.Close()

	out := make([]model.NewsCategory, 0, 8)
	for rows.Next() {
		var c model.NewsCategory
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, fmt.Errorf("newsRepo.Categories scan: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("newsRepo.Categories rows: %w", err)
	}
	return out, nil
}

func (r *NewsRepository) Create(ctx context.Context, n *model.News) error {
	defer logger.DeferLogDuration("news.Create", time.Now())()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO news (id, title, content, image_url, author_id, category_id, published_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		n.ID, n.Title, n.Content, n.ImageURL, n.AuthorID, n.CategoryID, n.PublishedAt,
	)
	if err != nil {
		return fmt.Errorf("newsRepo.Create: %w", err)
	}
	return nil
}

func (r *NewsRepository) GetByID(ctx context.Context, id string) (*model.News, error) {
	defer logger.DeferLogDuration("news.GetByID", time.Now())()
	n := &model.News{}
	var u model.UserPublic
	err := r.pool.QueryRow(ctx,
		`SELECT n.id, n.title, n.content, n.image_url, n.author_id, n.category_id,
		        COALESCE(c.name, ''), n.published_at,
		        u.id, u.email, u.full_name, u.role, u.avatar_url
		 FROM news n
		 JOIN users u ON u.id = n.author_id
		 LEFT JOIN news_categories c ON c.id = n.category_id
		 WHERE n.id = $1`, id,
	).Scan(&n.ID, &n.Title, &n.Content, &n.ImageURL, &n.AuthorID, &n.CategoryID,
		&n.CategoryName, &n.PublishedAt, &u.ID, &u.Email, &u.FullName, &u.Role, &u.AvatarURL)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("newsRepo.GetByID: %w", err)
	}
	n.Author = &u
	return n, nil
}

// List — лента новостей от свежих к старым; categoryID == "" — все категории.
func (r *NewsRepository) List(ctx context.Context, categoryID string, limit, offset int) ([]model.News, error) {
	defer logger.DeferLogDuration("news.List", time.Now())()
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	rows, err := r.pool.Query(ctx,
		`SELECT n.id, n.title, n.content, n.image_url, n.author_id, n.category_id,
		        COALESCE(c.name, ''), n.published_at,
		        u.id, u.email, u.full_name, u.role, u.avatar_url
		 FROM news n
		 JOIN users u ON u.id = n.author_id
		 LEFT JOIN news_categories c ON c.id = n.category_id
		 WHERE $1 = '' OR n.category_id::text = $1
		 ORDER BY n.published_at DESC
		 LIMIT $2 OFFSET $3`, categoryID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("newsRepo.List query: %w", err)
	}
	defer rows.Close()

	out := make([]model.News, 0, limit)
	for rows.Next() {
		var n model.News
		var u model.UserPublic
		if err := rows.Scan(&n.ID, &n.Title, &n.Content, &n.ImageURL, &n.AuthorID, &n.CategoryID,
			&n.CategoryName, &n.PublishedAt, &u.ID, &u.Email, &u.FullName, &u.Role, &u.AvatarURL); err != nil {
			return nil, fmt.Errorf("newsRepo.List scan: %w", err)
		}
		n.Author = &u
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("newsRepo.List rows: %w", err)
	}
	return out, nil
}

func (r *NewsRepository) Delete(ctx context.Context, id string) error {
	defer logger.DeferLogDuration("news.Delete", time.Now())()
	tag, err := r.pool.Exec(ctx, `DELETE FROM news WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("newsRepo.Delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
