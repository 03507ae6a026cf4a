package workers

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"librotek/memstore"
	"librotek/models"
	"librotek/utils"
)

type recordingDispatcher struct {
	emails []string
}

func (d *recordingDispatcher) SendEmail(_ context.Context, to, _, body string) error {
	d.emails = append(d.emails, to+": "+body)
	return nil
}

func (d *recordingDispatcher) SendSMS(context.Context, string, string) error { return nil }

func seedBorrow(t *testing.T, st *memstore.Store, email string, dueDate time.Time) *models.BorrowRecord {
	t.Helper()
	book := &models.Book{ID: uuid.NewString(), Title: "Working Effectively with Legacy Code", Author: "Feathers", Status: models.BookBorrowed}
	require.NoError(t, st.CreateBook(context.Background(), book))
	rec := &models.BorrowRecord{
		ID:            uuid.NewString(),
		BookID:        book.ID,
		BorrowerEmail: email,
		BorrowDate:    dueDate.Add(-14 * 24 * time.Hour),
		DueDate:       dueDate,
		Status:        models.BorrowActive,
	}
	require.NoError(t, st.CreateBorrow(context.Background(), rec))
	return rec
}

func TestCheckSendsOverdueWarning(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	disp := &recordingDispatcher{}
	hub := utils.NewHub()
	go hub.Run()

	require.NoError(t, st.CreateUser(ctx, &models.User{ID: "u1", Email: "ada@example.com"}))
	seedBorrow(t, st, "ada@example.com", time.Now().Add(-3*24*time.Hour))

	n := NewNotifier(st, disp, hub, time.Hour)
	n.Check(ctx)

	require.Len(t, disp.emails, 1)
	assert.Contains(t, disp.emails[0], "OVERDUE")
	assert.Contains(t, disp.emails[0], "3 day(s)")

	notifs, err := st.ListNotifications(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, notifs, 1)
	assert.Contains(t, notifs[0].Message, "Working Effectively with Legacy Code")
}

func TestCheckSendsDueSoonReminder(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	disp := &recordingDispatcher{}

	seedBorrow(t, st, "ada@example.com", time.Now().Add(12*time.Hour))

	n := NewNotifier(st, disp, nil, time.Hour)
	n.Check(ctx)

	require.Len(t, disp.emails, 1)
	assert.Contains(t, disp.emails[0], "REMINDER")
}

func TestCheckSkipsCurrentAndReturned(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	disp := &recordingDispatcher{}

	// Plenty of time left.
	seedBorrow(t, st, "ada@example.com", time.Now().Add(5*24*time.Hour))
	// Already returned.
	closed := seedBorrow(t, st, "grace@example.com", time.Now().Add(-5*24*time.Hour))
	_, err := st.CloseBorrowIf(ctx, closed.ID, time.Now())
	require.NoError(t, err)

	n := NewNotifier(st, disp, nil, time.Hour)
	n.Check(ctx)

	assert.Empty(t, disp.emails)
}

// Without an account the reminder still goes out by email; only the
// in-app copy is skipped.
func TestCheckWithoutAccountEmailOnly(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	disp := &recordingDispatcher{}

	seedBorrow(t, st, "walkin@example.com", time.Now().Add(-24*time.Hour))

	n := NewNotifier(st, disp, nil, time.Hour)
	n.Check(ctx)

	require.Len(t, disp.emails, 1)
	assert.True(t, strings.HasPrefix(disp.emails[0], "walkin@example.com:"))
}

// Two scans in a row store the in-app message once.
func TestCheckIsIdempotentInApp(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	disp := &recordingDispatcher{}

	require.NoError(t, st.CreateUser(ctx, &models.User{ID: "u1", Email: "ada@example.com"}))
	seedBorrow(t, st, "ada@example.com", time.Now().Add(12*time.Hour))

	n := NewNotifier(st, disp, nil, time.Hour)
	n.Check(ctx)
	n.Check(ctx)

	notifs, err := st.ListNotifications(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, notifs, 1)
}
