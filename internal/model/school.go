package model

import "time"

// Class — учебный класс (например 7Б в 2024/2025 году).
type Class struct {
	ID           string `json:"id"`
	Number       int    `json:"number"`
	Letter       string `json:"letter"`
	TeacherID    string `json:"teacher_id"`
	AcademicYear string `json:"academic_year"`
}

type Subject struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	TeacherID   string `json:"teacher_id"`
	Description string `json:"description,omitempty"`
}

// Schedule — один урок в сетке недели. DayOfWeek: 1 = понедельник … 7 = воскресенье.
type Schedule struct {
	ID          string `json:"id"`
	ClassID     string `json:"class_id"`
	SubjectID   string `json:"subject_id"`
	SubjectName string `json:"subject,omitempty"`
	DayOfWeek   int    `json:"day_of_week"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	Room        string `json:"room,omitempty"`
}

// Grade — оценка ученика по предмету за конкретный день (2..5, как в оригинале журнала).
type Grade struct {
	ID          string    `json:"id"`
	StudentID   string    `json:"student_id"`
	SubjectID   string    `json:"subject_id"`
	SubjectName string    `json:"subject,omitempty"`
	Value       int       `json:"value"`
	Date        time.Time `json:"date"`
	Comment     string    `json:"comment,omitempty"`
}
