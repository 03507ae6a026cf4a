package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"librotek/errs"
	"librotek/models"
)

// Integration tests run against a real MySQL instance, e.g.
//
//	LIBROTEK_TEST_DSN="root:@tcp(localhost:3306)/librotek_test?parseTime=true" go test ./store/
func newTestStore(t *testing.T) *MySQLStore {
	t.Helper()
	dsn := os.Getenv("LIBROTEK_TEST_DSN")
	if dsn == "" {
		t.Skip("LIBROTEK_TEST_DSN not set")
	}
	ctx := context.Background()
	st, err := NewMySQLStore(ctx, dsn)
	require.NoError(t, err)
	require.NoError(t, st.InitSchema(ctx))
	t.Cleanup(func() { st.Close() })
	return st
}

func testBook() *models.Book {
	return &models.Book{
		ID:        uuid.NewString(),
		Title:     "integration-" + uuid.NewString(),
		Author:    "Test Author",
		Status:    models.BookAvailable,
		CreatedAt: time.Now(),
	}
}

func TestMySQLBookRoundTrip(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	book := testBook()
	require.NoError(t, st.CreateBook(ctx, book))

	got, err := st.GetBookByID(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, book.Title, got.Title)
	assert.Equal(t, models.BookAvailable, got.Status)

	got.Description = "updated description"
	require.NoError(t, st.UpdateBook(ctx, got))

	again, err := st.GetBookByID(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, "updated description", again.Description)

	_, err = st.GetBookByID(ctx, uuid.NewString())
	assert.Equal(t, errs.NotFound, errs.KindOf(err))
}

func TestMySQLSetBookStatusIf(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	book := testBook()
	require.NoError(t, st.CreateBook(ctx, book))

	moved, err := st.SetBookStatusIf(ctx, book.ID, models.BookBorrowed, models.BookAvailable)
	require.NoError(t, err)
	assert.True(t, moved)

	moved, err = st.SetBookStatusIf(ctx, book.ID, models.BookBorrowed, models.BookAvailable)
	require.NoError(t, err)
	assert.False(t, moved, "second swap loses the precondition")
}

func TestMySQLBorrowLifecycle(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	book := testBook()
	require.NoError(t, st.CreateBook(ctx, book))

	now := time.Now().Truncate(time.Second)
	rec := &models.BorrowRecord{
		ID:            uuid.NewString(),
		BookID:        book.ID,
		BorrowerName:  "Ada Lovelace",
		BorrowerEmail: "ada@example.com",
		BorrowDate:    now,
		DueDate:       now.Add(14 * 24 * time.Hour),
		Status:        models.BorrowActive,
	}
	require.NoError(t, st.CreateBorrow(ctx, rec))

	active, err := st.ListActiveBorrows(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, active)

	closed, err := st.CloseBorrowIf(ctx, rec.ID, now.Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, closed)

	closed, err = st.CloseBorrowIf(ctx, rec.ID, now.Add(2*time.Hour))
	require.NoError(t, err)
	assert.False(t, closed)

	got, err := st.GetBorrowByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BorrowReturned, got.Status)
	require.NotNil(t, got.ReturnDate)
}

func TestMySQLOTPSingleUse(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	otp := &models.OTP{
		ID:        uuid.NewString(),
		Email:     uuid.NewString() + "@example.com",
		Code:      "042137",
		CreatedAt: time.Now(),
	}
	require.NoError(t, st.CreateOTP(ctx, otp))

	found, err := st.FindUnusedOTP(ctx, otp.Email, otp.Code)
	require.NoError(t, err)
	assert.Equal(t, otp.ID, found.ID)

	require.NoError(t, st.MarkOTPUsed(ctx, otp.ID))
	err = st.MarkOTPUsed(ctx, otp.ID)
	assert.Equal(t, errs.Conflict, errs.KindOf(err))

	_, err = st.FindUnusedOTP(ctx, otp.Email, otp.Code)
	assert.Equal(t, errs.NotFound, errs.KindOf(err))
}

func TestMySQLSettingsSeeded(t *testing.T) {
	st := newTestStore(t)
	settings, err := st.GetSettings(context.Background())
	require.NoError(t, err)
	assert.Positive(t, settings.LoanPeriodDays)
	assert.Positive(t, settings.OTPTTLMinutes)
}
