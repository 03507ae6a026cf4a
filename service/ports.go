package service

import (
	"context"
	"time"

	"librotek/models"
)

// Catalog is the slice of the store the orchestrator needs for book
// state transitions.
type Catalog interface {
	GetBookByID(ctx context.Context, id string) (*models.Book, error)
	ListBooks(ctx context.Context, f models.BookFilter) ([]models.Book, error)
	SetBookStatusIf(ctx context.Context, id string, to, from models.BookStatus) (bool, error)
	IncrementBorrowCount(ctx context.Context, id string) error
}

// Ledger is the slice of the store holding borrow transactions.
type Ledger interface {
	CreateBorrow(ctx context.Context, rec *models.BorrowRecord) error
	GetBorrowByID(ctx context.Context, id string) (*models.BorrowRecord, error)
	CloseBorrowIf(ctx context.Context, id string, returnedAt time.Time) (bool, error)
	ListActiveBorrows(ctx context.Context) ([]models.BorrowRecord, error)
	ListOverdueBorrows(ctx context.Context, now time.Time) ([]models.BorrowRecord, error)
}

// OTPStore persists one-time codes.
type OTPStore interface {
	CreateOTP(ctx context.Context, o *models.OTP) error
	FindUnusedOTP(ctx context.Context, email, code string) (*models.OTP, error)
	MarkOTPUsed(ctx context.Context, id string) error
}

// Dispatcher delivers codes and reminders out-of-band. Both channels may
// report unavailable; callers treat that as non-fatal.
type Dispatcher interface {
	SendEmail(ctx context.Context, to, subject, body string) error
	SendSMS(ctx context.Context, to, body string) error
}

// MetadataLookup resolves book metadata from an external provider
// (Google Books, Open Library). Implementations live outside this
// module; the contract is the models.VolumeInfo shape.
type MetadataLookup interface {
	ByISBN(ctx context.Context, isbn string) (*models.VolumeInfo, error)
	Search(ctx context.Context, query string) ([]models.VolumeInfo, error)
}
