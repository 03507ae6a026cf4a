package store

import (
	"context"
	"time"

	"librotek/models"
)

// Store is the full persistence surface of the application. MySQLStore
// is the production implementation; memstore.Store backs tests and the
// STORAGE=memory development mode.
type Store interface {
	Close() error

	// Users
	CreateUser(ctx context.Context, u *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	UpdateUser(ctx context.Context, u *models.User) error
	DeleteUser(ctx context.Context, id string) error

	// Book catalog
	CreateBook(ctx context.Context, b *models.Book) error
	GetBookByID(ctx context.Context, id string) (*models.Book, error)
	ListBooks(ctx context.Context, f models.BookFilter) ([]models.Book, error)
	UpdateBook(ctx context.Context, b *models.Book) error
	SetBookStatus(ctx context.Context, id string, status models.BookStatus) error
	// SetBookStatusIf is a compare-and-swap: the row moves only when its
	// current status equals from, and the result reports whether it did.
	SetBookStatusIf(ctx context.Context, id string, to, from models.BookStatus) (bool, error)
	IncrementBorrowCount(ctx context.Context, id string) error
	SoftDeleteBook(ctx context.Context, id string) error
	AddBookRating(ctx context.Context, r *models.BookRating) error
	ListBookRatings(ctx context.Context, bookID string) ([]models.BookRating, error)
	AppendBookLog(ctx context.Context, l *models.BookLog) error
	ListBookLogs(ctx context.Context, bookID string) ([]models.BookLog, error)
	MostBorrowedBooks(ctx context.Context, limit int) ([]models.Book, error)
	HighestRatedBooks(ctx context.Context, limit int) ([]models.Book, error)

	// Borrow ledger
	CreateBorrow(ctx context.Context, rec *models.BorrowRecord) error
	GetBorrowByID(ctx context.Context, id string) (*models.BorrowRecord, error)
	// CloseBorrowIf closes an active record, setting return date and
	// status together. Closing an already-returned record reports false
	// instead of silently re-setting the return date.
	CloseBorrowIf(ctx context.Context, id string, returnedAt time.Time) (bool, error)
	ListBorrows(ctx context.Context, f models.BorrowFilter) ([]models.BorrowRecord, error)
	ListActiveBorrows(ctx context.Context) ([]models.BorrowRecord, error)
	ListOverdueBorrows(ctx context.Context, now time.Time) ([]models.BorrowRecord, error)

	// OTP records
	CreateOTP(ctx context.Context, o *models.OTP) error
	FindUnusedOTP(ctx context.Context, email, code string) (*models.OTP, error)
	MarkOTPUsed(ctx context.Context, id string) error

	// Notifications
	CreateNotification(ctx context.Context, userID, message string) error
	ListNotifications(ctx context.Context, userID string) ([]models.Notification, error)
	MarkNotificationRead(ctx context.Context, id int) error
	DeleteNotification(ctx context.Context, id int) error

	// Settings
	GetSettings(ctx context.Context) (*models.Settings, error)
}
