package memstore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"librotek/errs"
	"librotek/models"
)

func newBook(status models.BookStatus) *models.Book {
	return &models.Book{
		ID:        uuid.NewString(),
		Title:     "Clean Architecture",
		Author:    "Robert Martin",
		Category:  "software",
		Status:    status,
		CreatedAt: time.Now(),
	}
}

func TestSetBookStatusIf(t *testing.T) {
	ctx := context.Background()
	st := New()
	book := newBook(models.BookAvailable)
	require.NoError(t, st.CreateBook(ctx, book))

	moved, err := st.SetBookStatusIf(ctx, book.ID, models.BookBorrowed, models.BookAvailable)
	require.NoError(t, err)
	assert.True(t, moved)

	// Same swap again: precondition no longer holds.
	moved, err = st.SetBookStatusIf(ctx, book.ID, models.BookBorrowed, models.BookAvailable)
	require.NoError(t, err)
	assert.False(t, moved)

	// Unknown id is a no-op, not an error.
	moved, err = st.SetBookStatusIf(ctx, uuid.NewString(), models.BookBorrowed, models.BookAvailable)
	require.NoError(t, err)
	assert.False(t, moved)
}

func TestSetBookStatusIfConcurrent(t *testing.T) {
	ctx := context.Background()
	st := New()
	book := newBook(models.BookAvailable)
	require.NoError(t, st.CreateBook(ctx, book))

	const n = 16
	wins := make(chan bool, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			moved, err := st.SetBookStatusIf(ctx, book.ID, models.BookBorrowed, models.BookAvailable)
			require.NoError(t, err)
			wins <- moved
		}()
	}
	wg.Wait()
	close(wins)

	var count int
	for moved := range wins {
		if moved {
			count++
		}
	}
	assert.Equal(t, 1, count, "exactly one swap wins")
}

func TestCloseBorrowIf(t *testing.T) {
	ctx := context.Background()
	st := New()
	rec := &models.BorrowRecord{
		ID:            uuid.NewString(),
		BookID:        uuid.NewString(),
		BorrowerEmail: "ada@example.com",
		BorrowDate:    time.Now(),
		Status:        models.BorrowActive,
	}
	require.NoError(t, st.CreateBorrow(ctx, rec))

	returnedAt := time.Now()
	closed, err := st.CloseBorrowIf(ctx, rec.ID, returnedAt)
	require.NoError(t, err)
	assert.True(t, closed)

	closed, err = st.CloseBorrowIf(ctx, rec.ID, returnedAt.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, closed, "closed records never close again")

	got, err := st.GetBorrowByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BorrowReturned, got.Status)
	require.NotNil(t, got.ReturnDate)
	assert.Equal(t, returnedAt, *got.ReturnDate)
}

func TestListBooksFilters(t *testing.T) {
	ctx := context.Background()
	st := New()

	available := newBook(models.BookAvailable)
	available.Title = "Introduction to Algorithms"
	borrowed := newBook(models.BookBorrowed)
	deleted := newBook(models.BookDeleted)
	for _, b := range []*models.Book{available, borrowed, deleted} {
		require.NoError(t, st.CreateBook(ctx, b))
	}

	books, err := st.ListBooks(ctx, models.BookFilter{})
	require.NoError(t, err)
	assert.Len(t, books, 2, "deleted entries are hidden by default")

	books, err = st.ListBooks(ctx, models.BookFilter{IncludeDeleted: true})
	require.NoError(t, err)
	assert.Len(t, books, 3)

	books, err = st.ListBooks(ctx, models.BookFilter{Status: models.BookBorrowed})
	require.NoError(t, err)
	require.Len(t, books, 1)
	assert.Equal(t, borrowed.ID, books[0].ID)

	books, err = st.ListBooks(ctx, models.BookFilter{Search: "algorithms"})
	require.NoError(t, err)
	require.Len(t, books, 1)
	assert.Equal(t, available.ID, books[0].ID)
}

func TestSoftDeleteBook(t *testing.T) {
	ctx := context.Background()
	st := New()
	book := newBook(models.BookAvailable)
	require.NoError(t, st.CreateBook(ctx, book))

	require.NoError(t, st.SoftDeleteBook(ctx, book.ID))

	// The row is still there by id.
	got, err := st.GetBookByID(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookDeleted, got.Status)

	err = st.SoftDeleteBook(ctx, book.ID)
	assert.Equal(t, errs.Conflict, errs.KindOf(err))
}

func TestAddBookRatingRecomputesAverage(t *testing.T) {
	ctx := context.Background()
	st := New()
	book := newBook(models.BookAvailable)
	require.NoError(t, st.CreateBook(ctx, book))

	for _, score := range []int{5, 3, 4} {
		require.NoError(t, st.AddBookRating(ctx, &models.BookRating{
			BookID: book.ID,
			Score:  score,
			Actor:  "ada@example.com",
		}))
	}

	got, err := st.GetBookByID(ctx, book.ID)
	require.NoError(t, err)
	assert.InDelta(t, 4.0, got.AverageRating, 0.001)

	ratings, err := st.ListBookRatings(ctx, book.ID)
	require.NoError(t, err)
	assert.Len(t, ratings, 3)
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	st := New()
	require.NoError(t, st.CreateUser(ctx, &models.User{ID: uuid.NewString(), Email: "ada@example.com"}))

	err := st.CreateUser(ctx, &models.User{ID: uuid.NewString(), Email: "ada@example.com"})
	assert.Equal(t, errs.Conflict, errs.KindOf(err))
}

func TestMarkOTPUsedConflict(t *testing.T) {
	ctx := context.Background()
	st := New()
	otp := &models.OTP{ID: uuid.NewString(), Email: "ada@example.com", Code: "042137", CreatedAt: time.Now()}
	require.NoError(t, st.CreateOTP(ctx, otp))

	require.NoError(t, st.MarkOTPUsed(ctx, otp.ID))
	err := st.MarkOTPUsed(ctx, otp.ID)
	assert.Equal(t, errs.Conflict, errs.KindOf(err))

	_, err = st.FindUnusedOTP(ctx, otp.Email, otp.Code)
	assert.Equal(t, errs.NotFound, errs.KindOf(err))
}

func TestFindUnusedOTPPrefersNewest(t *testing.T) {
	ctx := context.Background()
	st := New()
	base := time.Now()
	old := &models.OTP{ID: "old", Email: "ada@example.com", Code: "111111", CreatedAt: base.Add(-time.Hour)}
	recent := &models.OTP{ID: "recent", Email: "ada@example.com", Code: "111111", CreatedAt: base}
	require.NoError(t, st.CreateOTP(ctx, old))
	require.NoError(t, st.CreateOTP(ctx, recent))

	got, err := st.FindUnusedOTP(ctx, "ada@example.com", "111111")
	require.NoError(t, err)
	assert.Equal(t, "recent", got.ID)
}

func TestNotificationDedup(t *testing.T) {
	ctx := context.Background()
	st := New()

	require.NoError(t, st.CreateNotification(ctx, "u1", "book due tomorrow"))
	require.NoError(t, st.CreateNotification(ctx, "u1", "book due tomorrow"))
	require.NoError(t, st.CreateNotification(ctx, "u2", "book due tomorrow"))

	mine, err := st.ListNotifications(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, mine, 1, "identical message for the same user is stored once")
}

func TestListBorrowsDateRange(t *testing.T) {
	ctx := context.Background()
	st := New()
	base := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	for i, day := range []int{0, 5, 20} {
		require.NoError(t, st.CreateBorrow(ctx, &models.BorrowRecord{
			ID:            uuid.NewString(),
			BookID:        uuid.NewString(),
			BorrowerEmail: "ada@example.com",
			BorrowDate:    base.AddDate(0, 0, day),
			Status:        models.BorrowActive,
		}), "record %d", i)
	}

	recs, err := st.ListBorrows(ctx, models.BorrowFilter{
		From: base.AddDate(0, 0, 1),
		To:   base.AddDate(0, 0, 10),
	})
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}
