package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"librotek/errs"
	"librotek/models"
)

// DefaultLoanPeriod is the policy constant added to the borrow time to
// compute the due date.
const DefaultLoanPeriod = 14 * 24 * time.Hour

// Orchestrator sequences the borrow/return lifecycle across the book
// catalog and the borrow ledger. It holds no state of its own.
//
// The races the naive sequence allows (two borrowers both observing
// "available") are closed with compare-and-swap status updates: of two
// concurrent requests for one book exactly one wins, the other gets a
// conflict. Steps after a successful CAS are compensated on failure;
// when even the compensation fails the error is classified PartialState
// so operators can reconcile catalog and ledger by hand.
type Orchestrator struct {
	catalog    Catalog
	ledger     Ledger
	loanPeriod time.Duration
	now        func() time.Time
}

func NewOrchestrator(catalog Catalog, ledger Ledger, loanPeriod time.Duration) *Orchestrator {
	if loanPeriod <= 0 {
		loanPeriod = DefaultLoanPeriod
	}
	return &Orchestrator{catalog: catalog, ledger: ledger, loanPeriod: loanPeriod, now: time.Now}
}

// LoanPeriod reports the configured loan period.
func (o *Orchestrator) LoanPeriod() time.Duration { return o.loanPeriod }

// ComputeDueDate is pure: borrow time plus the loan period.
func (o *Orchestrator) ComputeDueDate(borrowDate time.Time) time.Time {
	return borrowDate.Add(o.loanPeriod)
}

// IsOverdue reports whether an active record's due date has passed.
func IsOverdue(rec *models.BorrowRecord, now time.Time) bool {
	return rec.Status == models.BorrowActive && rec.DueDate.Before(now)
}

// RequestBorrow checks a book out to the given borrower. The caller must
// have verified the borrower's OTP already. On success the book is
// borrowed, a ledger record with the computed due date exists, and the
// borrow counter has moved by one.
func (o *Orchestrator) RequestBorrow(ctx context.Context, bookID string, borrower models.BorrowerInfo) (*models.BorrowRecord, error) {
	const op = "orchestrator.request_borrow"
	if borrower.Name == "" || borrower.Email == "" {
		return nil, errs.E(errs.Validation, op, "borrower name and email are required")
	}

	book, err := o.catalog.GetBookByID(ctx, bookID)
	if err != nil {
		return nil, err
	}
	if book.Status != models.BookAvailable {
		return nil, errs.E(errs.Conflict, op, "this book is no longer available")
	}

	moved, err := o.catalog.SetBookStatusIf(ctx, bookID, models.BookBorrowed, models.BookAvailable)
	if err != nil {
		return nil, errs.Wrap(errs.Dependency, op, err)
	}
	if !moved {
		// Another request won the race between our read and the swap.
		return nil, errs.E(errs.Conflict, op, "this book is no longer available")
	}

	now := o.now()
	rec := &models.BorrowRecord{
		ID:            uuid.NewString(),
		BookID:        bookID,
		BorrowerName:  borrower.Name,
		BorrowerEmail: borrower.Email,
		BorrowerPhone: borrower.Phone,
		BorrowDate:    now,
		DueDate:       o.ComputeDueDate(now),
		Status:        models.BorrowActive,
	}
	if err := o.ledger.CreateBorrow(ctx, rec); err != nil {
		if _, casErr := o.catalog.SetBookStatusIf(ctx, bookID, models.BookAvailable, models.BookBorrowed); casErr != nil {
			return nil, errs.Wrapf(errs.PartialState, op, casErr,
				"ledger insert failed (%v) and book %s could not be released; manual reconciliation required", err, bookID)
		}
		return nil, errs.Wrap(errs.Dependency, op, err)
	}
	if err := o.catalog.IncrementBorrowCount(ctx, bookID); err != nil {
		return nil, errs.Wrapf(errs.PartialState, op, err,
			"borrow %s recorded but the borrow counter for book %s did not move; manual reconciliation required", rec.ID, bookID)
	}
	return rec, nil
}

// CompleteReturn closes an active borrow and releases the book. The
// ledger closes first: it is the authority on "at most one active record
// per book", so of two concurrent returns only one closes the record and
// the other gets a conflict.
func (o *Orchestrator) CompleteReturn(ctx context.Context, borrowID string) (*models.BorrowRecord, error) {
	const op = "orchestrator.complete_return"
	rec, err := o.ledger.GetBorrowByID(ctx, borrowID)
	if err != nil {
		return nil, err
	}
	if rec.Status != models.BorrowActive {
		return nil, errs.E(errs.Conflict, op, "borrow record is already returned")
	}

	returnedAt := o.now()
	closed, err := o.ledger.CloseBorrowIf(ctx, borrowID, returnedAt)
	if err != nil {
		return nil, errs.Wrap(errs.Dependency, op, err)
	}
	if !closed {
		return nil, errs.E(errs.Conflict, op, "borrow record is already returned")
	}

	moved, err := o.catalog.SetBookStatusIf(ctx, rec.BookID, models.BookAvailable, models.BookBorrowed)
	if err != nil {
		return nil, errs.Wrapf(errs.PartialState, op, err,
			"borrow %s closed but book %s could not be released; manual reconciliation required", borrowID, rec.BookID)
	}
	if !moved {
		return nil, errs.E(errs.PartialState, op,
			fmt.Sprintf("borrow %s closed but book %s was not in borrowed status; manual reconciliation required", borrowID, rec.BookID))
	}

	rec.Status = models.BorrowReturned
	rec.ReturnDate = &returnedAt
	return rec, nil
}

// ListOverdue returns the active records whose due date lies before now.
func (o *Orchestrator) ListOverdue(ctx context.Context, now time.Time) ([]models.BorrowRecord, error) {
	return o.ledger.ListOverdueBorrows(ctx, now)
}

// DriftEntry is one book whose catalog status disagrees with the ledger.
type DriftEntry struct {
	BookID        string            `json:"book_id"`
	Title         string            `json:"title"`
	Status        models.BookStatus `json:"status"`
	ActiveBorrows int               `json:"active_borrows"`
}

// ConsistencyReport lists every book violating the invariant that a book
// is borrowed iff exactly one active ledger record references it. A
// non-empty report means a partial failure slipped through and needs
// operator attention.
func (o *Orchestrator) ConsistencyReport(ctx context.Context) ([]DriftEntry, error) {
	const op = "orchestrator.consistency_report"
	active, err := o.ledger.ListActiveBorrows(ctx)
	if err != nil {
		return nil, errs.Wrap(errs.Dependency, op, err)
	}
	activeByBook := make(map[string]int)
	for _, rec := range active {
		activeByBook[rec.BookID]++
	}

	books, err := o.catalog.ListBooks(ctx, models.BookFilter{IncludeDeleted: true})
	if err != nil {
		return nil, errs.Wrap(errs.Dependency, op, err)
	}

	var drift []DriftEntry
	for _, b := range books {
		n := activeByBook[b.ID]
		consistent := (b.Status == models.BookBorrowed && n == 1) ||
			(b.Status != models.BookBorrowed && n == 0)
		if !consistent {
			drift = append(drift, DriftEntry{
				BookID:        b.ID,
				Title:         b.Title,
				Status:        b.Status,
				ActiveBorrows: n,
			})
		}
	}
	return drift, nil
}
