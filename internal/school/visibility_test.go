package school

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ValeZask/EduDiaryGit/internal/model"
)

type fakeDirectory struct {
	children map[string][]model.User
}

func (d *fakeDirectory) Children(_ context.Context, parentID string) ([]model.User, error) {
	return d.children[parentID], nil
}

func TestCanViewStudent(t *testing.T) {
	dir := &fakeDirectory{children: map[string][]model.User{
		"parent-1": {{ID: "student-1"}, {ID: "student-2"}},
	}}
	v := NewVisibility(dir)
	ctx := context.Background()

	cases := []struct {
		name      string
		viewer    model.User
		studentID string
		want      bool
	}{
		{"student sees self", model.User{ID: "student-1", Role: model.RoleStudent}, "student-1", true},
		{"student does not see classmate", model.User{ID: "student-1", Role: model.RoleStudent}, "student-2", false},
		{"parent sees own child", model.User{ID: "parent-1", Role: model.RoleParent}, "student-2", true},
		{"parent does not see others", model.User{ID: "parent-1", Role: model.RoleParent}, "student-9", false},
		{"stranger parent sees nobody", model.User{ID: "parent-2", Role: model.RoleParent}, "student-1", false},
		{"teacher sees any student", model.User{ID: "teacher-1", Role: model.RoleTeacher}, "student-9", true},
		{"unknown role sees nobody", model.User{ID: "x", Role: model.Role("admin")}, "student-1", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := v.CanViewStudent(ctx, &tc.viewer, tc.studentID)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}
