// Package school — правила доступа к дневнику: кто какого ученика видит.
package school

import (
	"context"
	"fmt"

	"github.com/ValeZask/EduDiaryGit/internal/model"
)

// Directory — часть репозитория пользователей, нужная правилам видимости.
type Directory interface {
	Children(ctx context.Context, parentID string) ([]model.User, error)
}

type rule func(ctx context.Context, viewer *model.User, studentID string) (bool, error)

// Visibility решает, может ли пользователь смотреть данные ученика (оценки,
// достижения, расписание его класса). Правило выбирается по роли аккаунта:
// ученик видит только себя, родитель — своих детей, учитель — любого ученика.
type Visibility struct {
	dir   Directory
	rules map[model.Role]rule
}

func NewVisibility(dir Directory) *Visibility {
	v := &Visibility{dir: dir}
	v.rules = map[model.Role]rule{
		model.RoleStudent: v.studentSeesSelf,
		model.RoleParent:  v.parentSeesChildren,
		model.RoleTeacher: v.teacherSeesAll,
	}
	return v
}

// CanViewStudent возвращает false и для неизвестной роли.
func (v *Visibility) CanViewStudent(ctx context.Context, viewer *model.User, studentID string) (bool, error) {
	r, ok := v.rules[viewer.Role]
	if !ok {
		return false, nil
	}
	allowed, err := r(ctx, viewer, studentID)
	if err != nil {
		return false, fmt.Errorf("school.CanViewStudent: %w", err)
	}
	return allowed, nil
}

func (v *Visibility) studentSeesSelf(_ context.Context, viewer *model.User, studentID string) (bool, error) {
	return viewer.ID == studentID, nil
}

func (v *Visibility) parentSeesChildren(ctx context.Context, viewer *model.User, studentID string) (bool, error) {
	children, err := v.dir.Children(ctx, viewer.ID)
	if err != nil {
		return false, err
	}
	for i := range children {
		if children[i].ID == studentID {
			return true, nil
		}
	}
	return false, nil
}

func (v *Visibility) teacherSeesAll(_ context.Context, _ *model.User, _ string) (bool, error) {
	return true, nil
}
