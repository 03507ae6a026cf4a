package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"librotek/errs"
	"librotek/memstore"
	"librotek/models"
)

func seedBook(t *testing.T, st *memstore.Store, status models.BookStatus) *models.Book {
	t.Helper()
	book := &models.Book{
		ID:     uuid.NewString(),
		Title:  "The Go Programming Language",
		Author: "Donovan & Kernighan",
		Status: status,
	}
	require.NoError(t, st.CreateBook(context.Background(), book))
	return book
}

var testBorrower = models.BorrowerInfo{
	Name:  "Ada Lovelace",
	Email: "ada@example.com",
	Phone: "+628123456789",
}

func TestRequestBorrowHappyPath(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	book := seedBook(t, st, models.BookAvailable)

	borrowedAt := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	orch := NewOrchestrator(st, st, DefaultLoanPeriod)
	orch.now = func() time.Time { return borrowedAt }

	rec, err := orch.RequestBorrow(ctx, book.ID, testBorrower)
	require.NoError(t, err)

	assert.Equal(t, models.BorrowActive, rec.Status)
	assert.Equal(t, borrowedAt, rec.BorrowDate)
	assert.Equal(t, borrowedAt.Add(14*24*time.Hour), rec.DueDate)
	assert.Equal(t, testBorrower, rec.Borrower())
	assert.Nil(t, rec.ReturnDate)

	got, err := st.GetBookByID(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookBorrowed, got.Status)
	assert.Equal(t, 1, got.BorrowCount)
}

func TestRequestBorrowCustomLoanPeriod(t *testing.T) {
	st := memstore.New()
	book := seedBook(t, st, models.BookAvailable)

	orch := NewOrchestrator(st, st, 7*24*time.Hour)
	rec, err := orch.RequestBorrow(context.Background(), book.ID, testBorrower)
	require.NoError(t, err)
	assert.Equal(t, rec.BorrowDate.Add(7*24*time.Hour), rec.DueDate)
}

func TestRequestBorrowUnavailableBook(t *testing.T) {
	for _, status := range []models.BookStatus{models.BookBorrowed, models.BookUnavailable, models.BookDeleted} {
		st := memstore.New()
		book := seedBook(t, st, status)
		orch := NewOrchestrator(st, st, 0)

		_, err := orch.RequestBorrow(context.Background(), book.ID, testBorrower)
		require.Error(t, err, "status %s", status)
		assert.Equal(t, errs.Conflict, errs.KindOf(err), "status %s", status)
	}
}

func TestRequestBorrowMissingBook(t *testing.T) {
	st := memstore.New()
	orch := NewOrchestrator(st, st, 0)
	_, err := orch.RequestBorrow(context.Background(), uuid.NewString(), testBorrower)
	assert.Equal(t, errs.NotFound, errs.KindOf(err))
}

func TestRequestBorrowRequiresBorrowerIdentity(t *testing.T) {
	st := memstore.New()
	book := seedBook(t, st, models.BookAvailable)
	orch := NewOrchestrator(st, st, 0)

	_, err := orch.RequestBorrow(context.Background(), book.ID, models.BorrowerInfo{Name: "No Email"})
	assert.Equal(t, errs.Validation, errs.KindOf(err))
}

// Two concurrent requests for one copy: exactly one wins, the other
// gets a conflict.
func TestRequestBorrowConcurrentSingleWinner(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	book := seedBook(t, st, models.BookAvailable)
	orch := NewOrchestrator(st, st, 0)

	const attempts = 8
	results := make([]error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = orch.RequestBorrow(ctx, book.ID, testBorrower)
		}(i)
	}
	wg.Wait()

	var wins, conflicts int
	for _, err := range results {
		switch {
		case err == nil:
			wins++
		case errs.KindOf(err) == errs.Conflict:
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, attempts-1, conflicts)

	got, err := st.GetBookByID(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.BorrowCount)

	active, err := st.ListActiveBorrows(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

type failingLedger struct {
	*memstore.Store
}

func (f *failingLedger) CreateBorrow(context.Context, *models.BorrowRecord) error {
	return errors.New("disk full")
}

// A failed ledger insert releases the book again.
func TestRequestBorrowLedgerFailureCompensates(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	book := seedBook(t, st, models.BookAvailable)
	orch := NewOrchestrator(st, &failingLedger{st}, 0)

	_, err := orch.RequestBorrow(ctx, book.ID, testBorrower)
	require.Error(t, err)
	assert.Equal(t, errs.Dependency, errs.KindOf(err))

	got, err := st.GetBookByID(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookAvailable, got.Status)
	assert.Equal(t, 0, got.BorrowCount)
}

type failingCounterCatalog struct {
	*memstore.Store
}

func (f *failingCounterCatalog) IncrementBorrowCount(context.Context, string) error {
	return errors.New("connection reset")
}

// The borrow stands even when the counter update fails, but the error
// is flagged for reconciliation.
func TestRequestBorrowCounterFailureIsPartialState(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	book := seedBook(t, st, models.BookAvailable)
	orch := NewOrchestrator(&failingCounterCatalog{st}, st, 0)

	_, err := orch.RequestBorrow(ctx, book.ID, testBorrower)
	require.Error(t, err)
	assert.Equal(t, errs.PartialState, errs.KindOf(err))

	active, err := st.ListActiveBorrows(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

func TestCompleteReturnHappyPath(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	book := seedBook(t, st, models.BookAvailable)
	orch := NewOrchestrator(st, st, 0)

	rec, err := orch.RequestBorrow(ctx, book.ID, testBorrower)
	require.NoError(t, err)

	returnedAt := rec.BorrowDate.Add(3 * 24 * time.Hour)
	orch.now = func() time.Time { return returnedAt }

	closed, err := orch.CompleteReturn(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BorrowReturned, closed.Status)
	require.NotNil(t, closed.ReturnDate)
	assert.Equal(t, returnedAt, *closed.ReturnDate)

	got, err := st.GetBookByID(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookAvailable, got.Status)
}

func TestCompleteReturnTwiceConflicts(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	book := seedBook(t, st, models.BookAvailable)
	orch := NewOrchestrator(st, st, 0)

	rec, err := orch.RequestBorrow(ctx, book.ID, testBorrower)
	require.NoError(t, err)

	first, err := orch.CompleteReturn(ctx, rec.ID)
	require.NoError(t, err)
	firstReturn := *first.ReturnDate

	_, err = orch.CompleteReturn(ctx, rec.ID)
	require.Error(t, err)
	assert.Equal(t, errs.Conflict, errs.KindOf(err))

	// The book must not have been released a second time and the
	// original return date must not move.
	stored, err := st.GetBorrowByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, firstReturn, *stored.ReturnDate)
}

// The return closes the ledger but the book is not in borrowed state
// anymore: flagged, not swallowed.
func TestCompleteReturnBookDriftIsPartialState(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	book := seedBook(t, st, models.BookAvailable)
	orch := NewOrchestrator(st, st, 0)

	rec, err := orch.RequestBorrow(ctx, book.ID, testBorrower)
	require.NoError(t, err)

	// Somebody forced the catalog out from under the ledger.
	require.NoError(t, st.SetBookStatus(ctx, book.ID, models.BookUnavailable))

	_, err = orch.CompleteReturn(ctx, rec.ID)
	require.Error(t, err)
	assert.Equal(t, errs.PartialState, errs.KindOf(err))
}

func TestIsOverdue(t *testing.T) {
	now := time.Date(2026, 3, 20, 12, 0, 0, 0, time.UTC)
	rec := &models.BorrowRecord{Status: models.BorrowActive, DueDate: now.Add(-time.Hour)}
	assert.True(t, IsOverdue(rec, now))

	rec.DueDate = now.Add(time.Hour)
	assert.False(t, IsOverdue(rec, now))

	rec.Status = models.BorrowReturned
	rec.DueDate = now.Add(-time.Hour)
	assert.False(t, IsOverdue(rec, now))
}

func TestListOverdue(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	overdueBook := seedBook(t, st, models.BookAvailable)
	currentBook := seedBook(t, st, models.BookAvailable)

	start := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	orch := NewOrchestrator(st, st, 0)
	orch.now = func() time.Time { return start }
	late, err := orch.RequestBorrow(ctx, overdueBook.ID, testBorrower)
	require.NoError(t, err)

	orch.now = func() time.Time { return start.Add(13 * 24 * time.Hour) }
	_, err = orch.RequestBorrow(ctx, currentBook.ID, testBorrower)
	require.NoError(t, err)

	overdue, err := orch.ListOverdue(ctx, start.Add(15*24*time.Hour))
	require.NoError(t, err)
	require.Len(t, overdue, 1)
	assert.Equal(t, late.ID, overdue[0].ID)
}

func TestConsistencyReport(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	healthy := seedBook(t, st, models.BookAvailable)
	orch := NewOrchestrator(st, st, 0)

	_, err := orch.RequestBorrow(ctx, healthy.ID, testBorrower)
	require.NoError(t, err)

	drift, err := orch.ConsistencyReport(ctx)
	require.NoError(t, err)
	assert.Empty(t, drift)

	// Borrowed in the catalog with no active record.
	orphan := seedBook(t, st, models.BookBorrowed)

	drift, err = orch.ConsistencyReport(ctx)
	require.NoError(t, err)
	require.Len(t, drift, 1)
	assert.Equal(t, orphan.ID, drift[0].BookID)
	assert.Equal(t, 0, drift[0].ActiveBorrows)
}
