package models

import "time"

type Skill struct {
	ID            string    `json:"id" db:"id"`
	Title         string    `json:"title" db:"title"`
	Description   string    `json:"description" db:"description"`
	Content       string    `json:"content,omitempty" db:"content"`
	Thumbnail     string    `json:"thumbnail,omitempty" db:"thumbnail"`
	Author        string    `json:"author" db:"author"`
	AuthorURL     string    `json:"author_url,omitempty" db:"author_url"`
	SourceURL     string    `json:"source_url" db:"source_url"`
	RepositoryURL string    `json:"repository_url" db:"repository_url"`
	Difficulty    string    `json:"difficulty" db:"difficulty"`
	ViewCount     int64     `json:"view_count" db:"view_count"`
	FavoriteCount int64     `json:"favorite_count" db:"favorite_count"`
	AverageRating float64   `json:"average_rating" db:"average_rating"`
	IsActive      bool      `json:"is_active" db:"is_active"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

type Category struct {
	ID          string `json:"id" db:"id"`
	Name        string `json:"name" db:"name"`
	Slug        string `json:"slug" db:"slug"`
	Description string `json:"description,omitempty" db:"description"`
	Icon        string `json:"icon,omitempty" db:"icon"`
	ParentID    string `json:"parent_id,omitempty" db:"parent_id"`
	SortOrder   int    `json:"sort_order" db:"sort_order"`
}

// CategoryNode is a category with its children, used for the tree view.
type CategoryNode struct {
	Category
	Children []*CategoryNode `json:"children"`
}

type Tag struct {
	ID    string `json:"id" db:"id"`
	Name  string `json:"name" db:"name"`
	Slug  string `json:"slug" db:"slug"`
	Count int    `json:"count" db:"count"`
}
