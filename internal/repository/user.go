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

var ErrEmailTaken = errors.New("email already registered")

const userCols = `id, email, password_hash, full_name, role, avatar_url, created_at`

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func scanUser(s interface{ Scan(dest ...any) error }, u *model.User) error {
	return s.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FullName, &u.Role, &u.AvatarURL, &u.CreatedAt)
}

func (r *UserRepository) Create(ctx context.Context, u *model.User) error {
	defer logger.DeferLogDuration("user.Create", time.Now())()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO users (id, email, password_hash, full_name, role, avatar_url, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		u.ID, u.Email, u.PasswordHash, u.FullName, u.Role, u.AvatarURL, u.CreatedAt,
	)
	if isUniqueViolation(err) {
		return ErrEmailTaken
	}
	if err != nil {
		return fmt.Errorf("userRepo.Create: %w", err)
	}
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*model.User, error) {
	defer logger.DeferLogDuration("user.GetByID", time.Now())()
	u := &model.User{}
	row := r.pool.QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE id = $1`, id)
	if err := scanUser(row, u); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("userRepo.GetByID: %w", err)
	}
	return u, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	defer logger.DeferLogDuration("user.GetByEmail", time.Now())()
	u := &model.User{}
	row := r.pool.QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE lower(email) = lower($1)`, email)
	if err := scanUser(row, u); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("userRepo.GetByEmail: %w", err)
	}
	return u, nil
}

// Search ищет пользователей по имени или email; role == "" — без фильтра по роли.
func (r *UserRepository) Search(ctx context.Context, query string, role model.Role, limit int) ([]model.User, error) {
	defer logger.DeferLogDuration("user.Search", time.Now())()
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+userCols+` FROM users
		 WHERE ($1 = '' OR full_name ILIKE '%' || $1 || '%' OR email ILIKE '%' || $1 || '%')
		   AND ($2 = '' OR role = $2)
		 ORDER BY full_name
		 LIMIT $3`, query, string(role), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("userRepo.Search query: %w", err)
	}
	defer rows.Close()

	users := make([]model.User, 0, limit)
	for rows.Next() {
		var u model.User
		if err := scanUser(rows, &u); err != nil {
			return nil, fmt.Errorf("userRepo.Search scan: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("userRepo.Search rows: %w", err)
	}
	return users, nil
}

func (r *UserRepository) UpdateAvatar(ctx context.Context, userID, avatarURL string) error {
	defer logger.DeferLogDuration("user.UpdateAvatar", time.Now())()
	_, err := r.pool.Exec(ctx, `UPDATE users SET avatar_url = $1 WHERE id = $2`, avatarURL, userID)
	if err != nil {
		return fmt.Errorf("userRepo.UpdateAvatar: %w", err)
	}
	return nil
}

func (r *UserRepository) GetProfile(ctx context.Context, userID string) (*model.Profile, error) {
	defer logger.DeferLogDuration("user.GetProfile", time.Now())()
	p := &model.Profile{}
	err := r.pool.QueryRow(ctx,
		`SELECT user_id, COALESCE(class_number, 0), COALESCE(class_letter, ''), COALESCE(phone, ''), COALESCE(address, '')
		 FROM profiles WHERE user_id = $1`, userID,
	).Scan(&p.UserID, &p.ClassNumber, &p.ClassLetter, &p.Phone, &p.Address)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("userRepo.GetProfile: %w", err)
	}
	return p, nil
}

func (r *UserRepository) UpsertProfile(ctx context.Context, p *model.Profile) error {
	defer logger.DeferLogDuration("user.UpsertProfile", time.Now())()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO profiles (user_id, class_number, class_letter, phone, address)
		 VALUES ($1, NULLIF($2, 0), NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, ''))
		 ON CONFLICT (user_id) DO UPDATE SET
		   class_number = EXCLUDED.class_number,
		   class_letter = EXCLUDED.class_letter,
		   phone = EXCLUDED.phone,
		   address = EXCLUDED.address`,
		p.UserID, p.ClassNumber, p.ClassLetter, p.Phone, p.Address,
	)
	if err != nil {
		return fmt.Errorf("userRepo.UpsertProfile: %w", err)
	}
	return nil
}

// LinkParent связывает родителя с учеником; повторная связка — no-op.
func (r *UserRepository) LinkParent(ctx context.Context, parentID, studentID string) error {
	defer logger.DeferLogDuration("user.LinkParent", time.Now())()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO student_parents (parent_id, student_id) VALUES ($1, $2)
		 ON CONFLICT DO NOTHING`, parentID, studentID,
	)
	if err != nil {
		return fmt.Errorf("userRepo.LinkParent: %w", err)
	}
	return nil
}

// Children возвращает учеников, привязанных к родителю.
func (r *UserRepository) Children(ctx context.Context, parentID string) ([]model.User, error) {
	defer logger.DeferLogDuration("user.Children", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT u.id, u.email, u.password_hash, u.full_name, u.role, u.avatar_url, u.created_at
		 FROM users u
		 JOIN student_parents sp ON sp.student_id = u.id
		 WHERE sp.parent_id = $1
		 ORDER BY u.full_name`, parentID,
	)
	if err != nil {
		return nil, fmt.Errorf("userRepo.Children query: %w", err)
	}
	defer rows.Close()

	users := make([]model.User, 0, 4)
	for rows.Next() {
		var u model.User
		if err := scanUser(rows, &u); err != nil {
			return nil, fmt.Errorf("userRepo.Children scan: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("userRepo.Children rows: %w", err)
	}
	return users, nil
}

// ClassmateIDs — ученики того же класса (по профилю), включая самого ученика.
func (r *UserRepository) ClassmateIDs(ctx context.Context, studentID string) ([]string, error) {
	defer logger.DeferLogDuration("user.ClassmateIDs", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT p2.user_id
		 FROM profiles p1
		 JOIN profiles p2 ON p2.class_number = p1.class_number AND p2.class_letter = p1.class_letter
		 WHERE p1.user_id = $1`, studentID,
	)
	if err != nil {
		return nil, fmt.Errorf("userRepo.ClassmateIDs query: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0, 32)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("userRepo.ClassmateIDs scan: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("userRepo.ClassmateIDs rows: %w", err)
	}
	return ids, nil
}
