package models

import "time"

// BorrowStatus is the lifecycle state of one checkout transaction.
type BorrowStatus string

const (
	BorrowActive   BorrowStatus = "active"
	BorrowReturned BorrowStatus = "returned"
)

// BorrowerInfo identifies who is checking a book out. It is copied onto
// the borrow record at borrow time and never updated afterwards, so the
// record stays stable even if the user edits their profile later.
type BorrowerInfo struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// BorrowRecord is one checkout transaction linking a book, a borrower
// snapshot and a due date. DueDate is fixed at creation; ReturnDate is
// set exactly once, when the record closes.
type BorrowRecord struct {
	ID            string       `json:"id" db:"id"`
	BookID        string       `json:"book_id" db:"book_id"`
	BorrowerName  string       `json:"borrower_name" db:"borrower_name"`
	BorrowerEmail string       `json:"borrower_email" db:"borrower_email"`
	BorrowerPhone string       `json:"borrower_phone" db:"borrower_phone"`
	BorrowDate    time.Time    `json:"borrow_date" db:"borrow_date"`
	DueDate       time.Time    `json:"due_date" db:"due_date"`
	ReturnDate    *time.Time   `json:"return_date" db:"return_date"`
	Status        BorrowStatus `json:"status" db:"status"`

	// Book is filled in by joined listings for display; never persisted
	// from here.
	Book *Book `json:"book,omitempty" db:"-"`
}

// Borrower rebuilds the snapshot struct from the flattened columns.
func (r *BorrowRecord) Borrower() BorrowerInfo {
	return BorrowerInfo{Name: r.BorrowerName, Email: r.BorrowerEmail, Phone: r.BorrowerPhone}
}

// BorrowFilter narrows a ledger listing.
type BorrowFilter struct {
	BookID string
	Email  string
	Status BorrowStatus
	From   time.Time
	To     time.Time
}

// BorrowRequest is the payload for an OTP-gated checkout.
type BorrowRequest struct {
	BookID string `json:"book_id"`
	Code   string `json:"code"`
}
