package model

import "time"

type NewsCategory struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type News struct {
	ID           string      `json:"id"`
	Title        string      `json:"title"`
	Content      string      `json:"content"`
	ImageURL     string      `json:"image_url,omitempty"`
	AuthorID     string      `json:"author_id"`
	CategoryID   *string     `json:"category_id,omitempty"`
	CategoryName string      `json:"category,omitempty"`
	PublishedAt  time.Time   `json:"published_at"`
	Author       *UserPublic `json:"author,omitempty"`
}
