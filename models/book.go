package models

import "time"

// BookStatus is the availability state of a catalog entry.
type BookStatus string

const (
	BookAvailable   BookStatus = "available"
	BookBorrowed    BookStatus = "borrowed"
	BookUnavailable BookStatus = "unavailable"
	// BookDeleted is a soft delete: the row stays queryable by id so old
	// borrow records keep a valid reference.
	BookDeleted BookStatus = "deleted"
)

// Valid reports whether s is one of the known catalog states.
func (s BookStatus) Valid() bool {
	switch s {
	case BookAvailable, BookBorrowed, BookUnavailable, BookDeleted:
		return true
	}
	return false
}

type Book struct {
	ID            string     `json:"id" db:"id"`
	Title         string     `json:"title" db:"title"`
	Author        string     `json:"author" db:"author"`
	ISBN          string     `json:"isbn" db:"isbn"`
	Category      string     `json:"category" db:"category"`
	Publisher     string     `json:"publisher" db:"publisher"`
	Description   string     `json:"description" db:"description"`
	PageCount     int        `json:"page_count" db:"page_count"`
	PublishedYear int        `json:"published_year" db:"published_year"`
	CoverURL      string     `json:"cover_url" db:"cover_url"`
	ShelfLocation string     `json:"shelf_location" db:"shelf_location"`
	Status        BookStatus `json:"status" db:"status"`
	BorrowCount   int        `json:"borrow_count" db:"borrow_count"`
	AverageRating float64    `json:"average_rating" db:"average_rating"`
	AddedBy       string     `json:"added_by" db:"added_by"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
}

// BookRequest is the payload for creating or updating a catalog entry.
type BookRequest struct {
	Title         string `json:"title"`
	Author        string `json:"author"`
	ISBN          string `json:"isbn"`
	Category      string `json:"category"`
	Publisher     string `json:"publisher"`
	Description   string `json:"description"`
	PageCount     int    `json:"page_count"`
	PublishedYear int    `json:"published_year"`
	CoverURL      string `json:"cover_url"`
	ShelfLocation string `json:"shelf_location"`
}

// BookFilter narrows a catalog listing. Deleted entries are hidden
// unless asked for explicitly.
type BookFilter struct {
	Status         BookStatus
	Search         string
	IncludeDeleted bool
}

// Audit actions recorded against a book.
const (
	LogCreated     = "created"
	LogUpdated     = "updated"
	LogDeleted     = "deleted"
	LogQRGenerated = "qr_generated"
)

// BookLog is one audit event with the acting user's identity.
type BookLog struct {
	ID        int       `json:"id" db:"id"`
	BookID    string    `json:"book_id" db:"book_id"`
	Action    string    `json:"action" db:"action"`
	Actor     string    `json:"actor" db:"actor"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// BookRating is a single 1-5 score left by a borrower.
type BookRating struct {
	ID        int       `json:"id" db:"id"`
	BookID    string    `json:"book_id" db:"book_id"`
	Score     int       `json:"score" db:"score"`
	Actor     string    `json:"actor" db:"actor"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
