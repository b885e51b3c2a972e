package model

import "time"

// Role — роль аккаунта (не путать с ролью участника чата, она чат-скоуповая).
type Role string

const (
	RoleTeacher Role = "teacher"
	RoleParent  Role = "parent"
	RoleStudent Role = "student"
)

// Valid сообщает, является ли строка известной ролью аккаунта.
func (r Role) Valid() bool {
	switch r {
	case RoleTeacher, RoleParent, RoleStudent:
		return true
	}
	return false
}

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	FullName     string    `json:"full_name"`
	Role         Role      `json:"role"`
	AvatarURL    string    `json:"avatar_url"`
	CreatedAt    time.Time `json:"created_at"`
}

// Profile — анкета пользователя: класс (для учеников), телефон, адрес.
type Profile struct {
	UserID      string `json:"user_id"`
	ClassNumber int    `json:"class_number,omitempty"`
	ClassLetter string `json:"class_letter,omitempty"`
	Phone       string `json:"phone,omitempty"`
	Address     string `json:"address,omitempty"`
}

// StudentParent связывает родителя с его ребёнком-учеником.
type StudentParent struct {
	ParentID  string `json:"parent_id"`
	StudentID string `json:"student_id"`
}

type UserPublic struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FullName  string `json:"full_name"`
	Role      Role   `json:"role"`
	AvatarURL string `json:"avatar_url"`
}

func (u *User) ToPublic() UserPublic {
	return UserPublic{
		ID:        u.ID,
		Email:     u.Email,
		FullName:  u.FullName,
		Role:      u.Role,
		AvatarURL: u.AvatarURL,
	}
}
