package model

import "time"

type AchievementCategory struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// AchievementPlace — занятое место ("1 место", "Гран-при" и т.п.).
type AchievementPlace struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Achievement struct {
	ID           string    `json:"id"`
	StudentID    string    `json:"student_id"`
	Title        string    `json:"title"`
	Description  string    `json:"description,omitempty"`
	Date         time.Time `json:"date"`
	CategoryID   string    `json:"category_id"`
	CategoryName string    `json:"category,omitempty"`
	PlaceID      string    `json:"place_id"`
	PlaceName    string    `json:"place,omitempty"`
}
