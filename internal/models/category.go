package models

import "time"

// UncategorizedName is the category name of notes without a category.
const UncategorizedName = "Uncategorized"

// Category is a user owned tag for notes.
type Category struct {
	ID        string    `db:"id" json:"id"`
	OwnerID   string    `db:"owner_id" json:"owner_id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// NoteRef is the category-bearing projection of a note.
type NoteRef struct {
	ID           string    `db:"id" json:"id"`
	OwnerID      string    `db:"owner_id" json:"owner_id"`
	Title        string    `db:"title" json:"title"`
	CategoryID   string    `db:"category_id" json:"category_id"`
	CategoryName string    `db:"category_name" json:"category_name"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Progress reports the work done by a chunked rewrite.
type Progress struct {
	Chunks    int   `json:"chunks"`
	Rewritten int64 `json:"rewritten"`
}
