// Package memstore is an in-memory implementation of store.Store. It
// backs the unit tests and the STORAGE=memory development mode; every
// operation takes the store mutex, so the compare-and-swap methods give
// the same exactly-one-winner guarantee as the SQL backend.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"librotek/errs"
	"librotek/models"
	"librotek/store"
)

type Store struct {
	mu sync.RWMutex

	books         map[string]*models.Book
	borrows       map[string]*models.BorrowRecord
	otps          map[string]*models.OTP
	users         map[string]*models.User
	notifications map[int]*models.Notification
	logs          map[string][]models.BookLog
	ratings       map[string][]models.BookRating
	settings      models.Settings

	nextNotifID  int
	nextLogID    int
	nextRatingID int
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		books:         make(map[string]*models.Book),
		borrows:       make(map[string]*models.BorrowRecord),
		otps:          make(map[string]*models.OTP),
		users:         make(map[string]*models.User),
		notifications: make(map[int]*models.Notification),
		logs:          make(map[string][]models.BookLog),
		ratings:       make(map[string][]models.BookRating),
		settings:      models.Settings{ID: 1, LoanPeriodDays: 14, OTPTTLMinutes: 10},
	}
}

func (s *Store) Close() error { return nil }

// ------------------ Users ------------------

func (s *Store) CreateUser(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Email == u.Email {
			return errs.E(errs.Conflict, "memstore.create_user", "a user with this email already exists")
		}
	}
	cp := *u
	s.users[u.ID] = &cp
	return nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, errs.E(errs.NotFound, "memstore.get_user", "user not found")
}

func (s *Store) GetUserByID(_ context.Context, id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, errs.E(errs.NotFound, "memstore.get_user", "user not found")
	}
	cp := *u
	return &cp, nil
}

func (s *Store) ListUsers(_ context.Context) ([]models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	users := make([]models.User, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, *u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].CreatedAt.Before(users[j].CreatedAt) })
	return users, nil
}

func (s *Store) UpdateUser(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.users[u.ID]
	if !ok {
		return errs.E(errs.NotFound, "memstore.update_user", "user not found")
	}
	existing.Name = u.Name
	existing.Phone = u.Phone
	existing.Role = u.Role
	return nil
}

func (s *Store) DeleteUser(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return errs.E(errs.NotFound, "memstore.delete_user", "user not found")
	}
	delete(s.users, id)
	return nil
}

// ------------------ Book catalog ------------------

func (s *Store) CreateBook(_ context.Context, b *models.Book) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *b
	s.books[b.ID] = &cp
	return nil
}

func (s *Store) GetBookByID(_ context.Context, id string) (*models.Book, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.books[id]
	if !ok {
		return nil, errs.E(errs.NotFound, "memstore.get_book", "book not found")
	}
	cp := *b
	return &cp, nil
}

func (s *Store) ListBooks(_ context.Context, f models.BookFilter) ([]models.Book, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var books []models.Book
	for _, b := range s.books {
		if f.Status != "" {
			if b.Status != f.Status {
				continue
			}
		} else if !f.IncludeDeleted && b.Status == models.BookDeleted {
			continue
		}
		if f.Search != "" && !bookMatches(b, f.Search) {
			continue
		}
		books = append(books, *b)
	}
	sort.Slice(books, func(i, j int) bool { return books[i].CreatedAt.After(books[j].CreatedAt) })
	return books, nil
}

func bookMatches(b *models.Book, search string) bool {
	q := strings.ToLower(search)
	for _, field := range []string{b.Title, b.Author, b.ISBN, b.Category} {
		if strings.Contains(strings.ToLower(field), q) {
			return true
		}
	}
	return false
}

func (s *Store) UpdateBook(_ context.Context, b *models.Book) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.books[b.ID]
	if !ok {
		return errs.E(errs.NotFound, "memstore.update_book", "book not found")
	}
	existing.Title = b.Title
	existing.Author = b.Author
	existing.ISBN = b.ISBN
	existing.Category = b.Category
	existing.Publisher = b.Publisher
	existing.Description = b.Description
	existing.PageCount = b.PageCount
	existing.PublishedYear = b.PublishedYear
	existing.CoverURL = b.CoverURL
	existing.ShelfLocation = b.ShelfLocation
	return nil
}

func (s *Store) SetBookStatus(_ context.Context, id string, status models.BookStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.books[id]
	if !ok {
		return errs.E(errs.NotFound, "memstore.set_book_status", "book not found")
	}
	b.Status = status
	return nil
}

func (s *Store) SetBookStatusIf(_ context.Context, id string, to, from models.BookStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.books[id]
	if !ok || b.Status != from {
		return false, nil
	}
	b.Status = to
	return true, nil
}

func (s *Store) IncrementBorrowCount(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.books[id]
	if !ok {
		return errs.E(errs.NotFound, "memstore.increment_borrow_count", "book not found")
	}
	b.BorrowCount++
	return nil
}

func (s *Store) SoftDeleteBook(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.books[id]
	if !ok {
		return errs.E(errs.NotFound, "memstore.soft_delete_book", "book not found")
	}
	if b.Status == models.BookDeleted {
		return errs.E(errs.Conflict, "memstore.soft_delete_book", "book already deleted")
	}
	b.Status = models.BookDeleted
	return nil
}

func (s *Store) AddBookRating(_ context.Context, r *models.BookRating) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.books[r.BookID]
	if !ok {
		return errs.E(errs.NotFound, "memstore.add_book_rating", "book not found")
	}
	s.nextRatingID++
	cp := *r
	cp.ID = s.nextRatingID
	s.ratings[r.BookID] = append(s.ratings[r.BookID], cp)

	var sum int
	for _, rating := range s.ratings[r.BookID] {
		sum += rating.Score
	}
	b.AverageRating = float64(sum) / float64(len(s.ratings[r.BookID]))
	return nil
}

func (s *Store) ListBookRatings(_ context.Context, bookID string) ([]models.BookRating, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.BookRating, len(s.ratings[bookID]))
	copy(out, s.ratings[bookID])
	return out, nil
}

func (s *Store) AppendBookLog(_ context.Context, l *models.BookLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextLogID++
	cp := *l
	cp.ID = s.nextLogID
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	s.logs[l.BookID] = append(s.logs[l.BookID], cp)
	return nil
}

func (s *Store) ListBookLogs(_ context.Context, bookID string) ([]models.BookLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.BookLog, len(s.logs[bookID]))
	copy(out, s.logs[bookID])
	return out, nil
}

func (s *Store) MostBorrowedBooks(ctx context.Context, limit int) ([]models.Book, error) {
	return s.topBooks(ctx, limit, func(a, b models.Book) bool { return a.BorrowCount > b.BorrowCount })
}

func (s *Store) HighestRatedBooks(ctx context.Context, limit int) ([]models.Book, error) {
	return s.topBooks(ctx, limit, func(a, b models.Book) bool { return a.AverageRating > b.AverageRating })
}

func (s *Store) topBooks(ctx context.Context, limit int, less func(a, b models.Book) bool) ([]models.Book, error) {
	books, err := s.ListBooks(ctx, models.BookFilter{})
	if err != nil {
		return nil, err
	}
	sort.Slice(books, func(i, j int) bool { return less(books[i], books[j]) })
	if limit <= 0 {
		limit = 10
	}
	if len(books) > limit {
		books = books[:limit]
	}
	return books, nil
}

// ------------------ Borrow ledger ------------------

func (s *Store) CreateBorrow(_ context.Context, rec *models.BorrowRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *rec
	cp.Book = nil
	s.borrows[rec.ID] = &cp
	return nil
}

func (s *Store) GetBorrowByID(_ context.Context, id string) (*models.BorrowRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.borrows[id]
	if !ok {
		return nil, errs.E(errs.NotFound, "memstore.get_borrow", "borrow record not found")
	}
	cp := *rec
	return &cp, nil
}

func (s *Store) CloseBorrowIf(_ context.Context, id string, returnedAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.borrows[id]
	if !ok || rec.Status != models.BorrowActive {
		return false, nil
	}
	rec.Status = models.BorrowReturned
	t := returnedAt
	rec.ReturnDate = &t
	return true, nil
}

func (s *Store) ListBorrows(_ context.Context, f models.BorrowFilter) ([]models.BorrowRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var recs []models.BorrowRecord
	for _, rec := range s.borrows {
		if f.BookID != "" && rec.BookID != f.BookID {
			continue
		}
		if f.Email != "" && rec.BorrowerEmail != f.Email {
			continue
		}
		if f.Status != "" && rec.Status != f.Status {
			continue
		}
		if !f.From.IsZero() && rec.BorrowDate.Before(f.From) {
			continue
		}
		if !f.To.IsZero() && rec.BorrowDate.After(f.To) {
			continue
		}
		cp := *rec
		if b, ok := s.books[rec.BookID]; ok {
			bcp := *b
			cp.Book = &bcp
		}
		recs = append(recs, cp)
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].BorrowDate.After(recs[j].BorrowDate) })
	return recs, nil
}

func (s *Store) ListActiveBorrows(ctx context.Context) ([]models.BorrowRecord, error) {
	return s.ListBorrows(ctx, models.BorrowFilter{Status: models.BorrowActive})
}

func (s *Store) ListOverdueBorrows(ctx context.Context, now time.Time) ([]models.BorrowRecord, error) {
	active, err := s.ListActiveBorrows(ctx)
	if err != nil {
		return nil, err
	}
	var overdue []models.BorrowRecord
	for _, rec := range active {
		if rec.DueDate.Before(now) {
			overdue = append(overdue, rec)
		}
	}
	return overdue, nil
}

// ------------------ OTP records ------------------

func (s *Store) CreateOTP(_ context.Context, o *models.OTP) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *o
	s.otps[o.ID] = &cp
	return nil
}

func (s *Store) FindUnusedOTP(_ context.Context, email, code string) (*models.OTP, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest *models.OTP
	for _, o := range s.otps {
		if o.Email != email || o.Code != code || o.IsUsed {
			continue
		}
		if latest == nil || o.CreatedAt.After(latest.CreatedAt) {
			latest = o
		}
	}
	if latest == nil {
		return nil, errs.E(errs.NotFound, "memstore.find_unused_otp", "otp not found")
	}
	cp := *latest
	return &cp, nil
}

func (s *Store) MarkOTPUsed(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.otps[id]
	if !ok {
		return errs.E(errs.NotFound, "memstore.mark_otp_used", "otp not found")
	}
	if o.IsUsed {
		return errs.E(errs.Conflict, "memstore.mark_otp_used", "otp already used")
	}
	o.IsUsed = true
	return nil
}

// ------------------ Notifications ------------------

func (s *Store) CreateNotification(_ context.Context, userID, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.notifications {
		if n.UserID == userID && n.Message == message {
			return nil
		}
	}
	s.nextNotifID++
	s.notifications[s.nextNotifID] = &models.Notification{
		ID:        s.nextNotifID,
		UserID:    userID,
		Message:   message,
		CreatedAt: time.Now(),
	}
	return nil
}

func (s *Store) ListNotifications(_ context.Context, userID string) ([]models.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var notifs []models.Notification
	for _, n := range s.notifications {
		if n.UserID == userID {
			notifs = append(notifs, *n)
		}
	}
	sort.Slice(notifs, func(i, j int) bool { return notifs[i].ID > notifs[j].ID })
	return notifs, nil
}

func (s *Store) MarkNotificationRead(_ context.Context, id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n, ok := s.notifications[id]; ok {
		n.IsRead = true
	}
	return nil
}

func (s *Store) DeleteNotification(_ context.Context, id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.notifications, id)
	return nil
}

// ------------------ Settings ------------------

func (s *Store) GetSettings(_ context.Context) (*models.Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp := s.settings
	return &cp, nil
}

// SetSettings overrides the lending policy; test helper.
func (s *Store) SetSettings(set models.Settings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = set
}
