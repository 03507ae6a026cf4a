package store

import (
	"context"
	"time"

	"github.com/doug-martin/goqu/v9"

	"librotek/errs"
	"librotek/models"
)

var borrowCols = []any{
	"id", "book_id", "borrower_name", "borrower_email", "borrower_phone",
	"borrow_date", "due_date", "return_date", "status",
}

func (s *MySQLStore) CreateBorrow(ctx context.Context, rec *models.BorrowRecord) error {
	const op = "store.create_borrow"
	query, args, err := builder.Insert("borrows").Rows(goqu.Record{
		"id":             rec.ID,
		"book_id":        rec.BookID,
		"borrower_name":  rec.BorrowerName,
		"borrower_email": rec.BorrowerEmail,
		"borrower_phone": rec.BorrowerPhone,
		"borrow_date":    rec.BorrowDate,
		"due_date":       rec.DueDate,
		"return_date":    rec.ReturnDate,
		"status":         rec.Status,
	}).Prepared(true).ToSQL()
	if err != nil {
		return errs.Wrap(errs.Dependency, op, err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return errs.Wrap(errs.Dependency, op, err)
	}
	return nil
}

func (s *MySQLStore) GetBorrowByID(ctx context.Context, id string) (*models.BorrowRecord, error) {
	const op = "store.get_borrow"
	query, args, err := builder.From("borrows").Select(borrowCols...).
		Where(goqu.Ex{"id": id}).Prepared(true).ToSQL()
	if err != nil {
		return nil, errs.Wrap(errs.Dependency, op, err)
	}
	var rec models.BorrowRecord
	if err := s.db.GetContext(ctx, &rec, query, args...); err != nil {
		if isNoRows(err) {
			return nil, errs.E(errs.NotFound, op, "borrow record not found")
		}
		return nil, errs.Wrap(errs.Dependency, op, err)
	}
	return &rec, nil
}

func (s *MySQLStore) CloseBorrowIf(ctx context.Context, id string, returnedAt time.Time) (bool, error) {
	return s.execAffected(ctx, "store.close_borrow_if",
		"UPDATE borrows SET status = ?, return_date = ? WHERE id = ? AND status = ?",
		models.BorrowReturned, returnedAt, id, models.BorrowActive)
}

func (s *MySQLStore) ListBorrows(ctx context.Context, f models.BorrowFilter) ([]models.BorrowRecord, error) {
	const op = "store.list_borrows"
	ds := builder.From("borrows").Select(borrowCols...)
	if f.BookID != "" {
		ds = ds.Where(goqu.Ex{"book_id": f.BookID})
	}
	if f.Email != "" {
		ds = ds.Where(goqu.Ex{"borrower_email": f.Email})
	}
	if f.Status != "" {
		ds = ds.Where(goqu.Ex{"status": f.Status})
	}
	if !f.From.IsZero() {
		ds = ds.Where(goqu.C("borrow_date").Gte(f.From))
	}
	if !f.To.IsZero() {
		ds = ds.Where(goqu.C("borrow_date").Lte(f.To))
	}
	query, args, err := ds.Order(goqu.C("borrow_date").Desc()).Prepared(true).ToSQL()
	if err != nil {
		return nil, errs.Wrap(errs.Dependency, op, err)
	}
	var recs []models.BorrowRecord
	if err := s.db.SelectContext(ctx, &recs, query, args...); err != nil {
		return nil, errs.Wrap(errs.Dependency, op, err)
	}
	s.attachBooks(ctx, recs)
	return recs, nil
}

func (s *MySQLStore) ListActiveBorrows(ctx context.Context) ([]models.BorrowRecord, error) {
	return s.ListBorrows(ctx, models.BorrowFilter{Status: models.BorrowActive})
}

func (s *MySQLStore) ListOverdueBorrows(ctx context.Context, now time.Time) ([]models.BorrowRecord, error) {
	const op = "store.list_overdue_borrows"
	query, args, err := builder.From("borrows").Select(borrowCols...).
		Where(goqu.Ex{"status": models.BorrowActive}).
		Where(goqu.C("due_date").Lt(now)).
		Order(goqu.C("due_date").Asc()).
		Prepared(true).ToSQL()
	if err != nil {
		return nil, errs.Wrap(errs.Dependency, op, err)
	}
	var recs []models.BorrowRecord
	if err := s.db.SelectContext(ctx, &recs, query, args...); err != nil {
		return nil, errs.Wrap(errs.Dependency, op, err)
	}
	s.attachBooks(ctx, recs)
	return recs, nil
}

// attachBooks fills in the display-only Book field on listings. Lookup
// misses are left nil rather than failing the whole listing.
func (s *MySQLStore) attachBooks(ctx context.Context, recs []models.BorrowRecord) {
	cache := make(map[string]*models.Book)
	for i := range recs {
		if b, ok := cache[recs[i].BookID]; ok {
			recs[i].Book = b
			continue
		}
		b, err := s.GetBookByID(ctx, recs[i].BookID)
		if err != nil {
			continue
		}
		cache[recs[i].BookID] = b
		recs[i].Book = b
	}
}
