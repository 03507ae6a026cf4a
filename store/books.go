package store

import (
	"context"
	"time"

	"github.com/doug-martin/goqu/v9"

	"librotek/errs"
	"librotek/models"
)

var bookCols = []any{
	"id", "title", "author", "isbn", "category", "publisher", "description",
	"page_count", "published_year", "cover_url", "shelf_location",
	"status", "borrow_count", "average_rating", "added_by", "created_at",
}

func (s *MySQLStore) CreateBook(ctx context.Context, b *models.Book) error {
	const op = "store.create_book"
	query, args, err := builder.Insert("books").Rows(goqu.Record{
		"id":             b.ID,
		"title":          b.Title,
		"author":         b.Author,
		"isbn":           b.ISBN,
		"category":       b.Category,
		"publisher":      b.Publisher,
		"description":    b.Description,
		"page_count":     b.PageCount,
		"published_year": b.PublishedYear,
		"cover_url":      b.CoverURL,
		"shelf_location": b.ShelfLocation,
		"status":         b.Status,
		"borrow_count":   b.BorrowCount,
		"average_rating": b.AverageRating,
		"added_by":       b.AddedBy,
		"created_at":     b.CreatedAt,
	}).Prepared(true).ToSQL()
	if err != nil {
		return errs.Wrap(errs.Dependency, op, err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return errs.Wrap(errs.Dependency, op, err)
	}
	return nil
}

func (s *MySQLStore) GetBookByID(ctx context.Context, id string) (*models.Book, error) {
	const op = "store.get_book"
	query, args, err := builder.From("books").Select(bookCols...).
		Where(goqu.Ex{"id": id}).Prepared(true).ToSQL()
	if err != nil {
		return nil, errs.Wrap(errs.Dependency, op, err)
	}
	var b models.Book
	if err := s.db.GetContext(ctx, &b, query, args...); err != nil {
		if isNoRows(err) {
			return nil, errs.E(errs.NotFound, op, "book not found")
		}
		return nil, errs.Wrap(errs.Dependency, op, err)
	}
	return &b, nil
}

func (s *MySQLStore) ListBooks(ctx context.Context, f models.BookFilter) ([]models.Book, error) {
	const op = "store.list_books"
	ds := builder.From("books").Select(bookCols...)
	if f.Status != "" {
		ds = ds.Where(goqu.Ex{"status": f.Status})
	} else if !f.IncludeDeleted {
		ds = ds.Where(goqu.C("status").Neq(models.BookDeleted))
	}
	if f.Search != "" {
		pattern := "%" + f.Search + "%"
		ds = ds.Where(goqu.Or(
			goqu.C("title").ILike(pattern),
			goqu.C("author").ILike(pattern),
			goqu.C("isbn").ILike(pattern),
			goqu.C("category").ILike(pattern),
		))
	}
	query, args, err := ds.Order(goqu.C("created_at").Desc()).Prepared(true).ToSQL()
	if err != nil {
		return nil, errs.Wrap(errs.Dependency, op, err)
	}
	var books []models.Book
	if err := s.db.SelectContext(ctx, &books, query, args...); err != nil {
		return nil, errs.Wrap(errs.Dependency, op, err)
	}
	return books, nil
}

func (s *MySQLStore) UpdateBook(ctx context.Context, b *models.Book) error {
	const op = "store.update_book"
	query, args, err := builder.Update("books").Set(goqu.Record{
		"title":          b.Title,
		"author":         b.Author,
		"isbn":           b.ISBN,
		"category":       b.Category,
		"publisher":      b.Publisher,
		"description":    b.Description,
		"page_count":     b.PageCount,
		"published_year": b.PublishedYear,
		"cover_url":      b.CoverURL,
		"shelf_location": b.ShelfLocation,
	}).Where(goqu.Ex{"id": b.ID}).Prepared(true).ToSQL()
	if err != nil {
		return errs.Wrap(errs.Dependency, op, err)
	}
	moved, err := s.execAffected(ctx, op, query, args...)
	if err != nil {
		return err
	}
	if !moved {
		// RowsAffected is also 0 when the update was a no-op on an
		// existing row, so double-check existence before reporting.
		if _, getErr := s.GetBookByID(ctx, b.ID); getErr != nil {
			return getErr
		}
	}
	return nil
}

func (s *MySQLStore) SetBookStatus(ctx context.Context, id string, status models.BookStatus) error {
	const op = "store.set_book_status"
	moved, err := s.execAffected(ctx, op,
		"UPDATE books SET status = ? WHERE id = ?", status, id)
	if err != nil {
		return err
	}
	if !moved {
		if _, getErr := s.GetBookByID(ctx, id); getErr != nil {
			return getErr
		}
	}
	return nil
}

func (s *MySQLStore) SetBookStatusIf(ctx context.Context, id string, to, from models.BookStatus) (bool, error) {
	return s.execAffected(ctx, "store.set_book_status_if",
		"UPDATE books SET status = ? WHERE id = ? AND status = ?", to, id, from)
}

func (s *MySQLStore) IncrementBorrowCount(ctx context.Context, id string) error {
	const op = "store.increment_borrow_count"
	moved, err := s.execAffected(ctx, op,
		"UPDATE books SET borrow_count = borrow_count + 1 WHERE id = ?", id)
	if err != nil {
		return err
	}
	if !moved {
		return errs.E(errs.NotFound, op, "book not found")
	}
	return nil
}

func (s *MySQLStore) SoftDeleteBook(ctx context.Context, id string) error {
	const op = "store.soft_delete_book"
	moved, err := s.execAffected(ctx, op,
		"UPDATE books SET status = ? WHERE id = ? AND status <> ?",
		models.BookDeleted, id, models.BookDeleted)
	if err != nil {
		return err
	}
	if !moved {
		if _, getErr := s.GetBookByID(ctx, id); getErr != nil {
			return getErr
		}
		return errs.E(errs.Conflict, op, "book already deleted")
	}
	return nil
}

func (s *MySQLStore) AddBookRating(ctx context.Context, r *models.BookRating) error {
	const op = "store.add_book_rating"
	query, args, err := builder.Insert("book_ratings").Rows(goqu.Record{
		"book_id":    r.BookID,
		"score":      r.Score,
		"actor":      r.Actor,
		"created_at": r.CreatedAt,
	}).Prepared(true).ToSQL()
	if err != nil {
		return errs.Wrap(errs.Dependency, op, err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return errs.Wrap(errs.Dependency, op, err)
	}
	// Keep the denormalized average in step with the ratings table.
	_, err = s.db.ExecContext(ctx,
		`UPDATE books SET average_rating =
			(SELECT COALESCE(AVG(score), 0) FROM book_ratings WHERE book_id = ?)
		 WHERE id = ?`, r.BookID, r.BookID)
	if err != nil {
		return errs.Wrap(errs.Dependency, op, err)
	}
	return nil
}

func (s *MySQLStore) ListBookRatings(ctx context.Context, bookID string) ([]models.BookRating, error) {
	const op = "store.list_book_ratings"
	query, args, err := builder.From("book_ratings").
		Select("id", "book_id", "score", "actor", "created_at").
		Where(goqu.Ex{"book_id": bookID}).
		Order(goqu.C("created_at").Desc()).
		Prepared(true).ToSQL()
	if err != nil {
		return nil, errs.Wrap(errs.Dependency, op, err)
	}
	var ratings []models.BookRating
	if err := s.db.SelectContext(ctx, &ratings, query, args...); err != nil {
		return nil, errs.Wrap(errs.Dependency, op, err)
	}
	return ratings, nil
}

func (s *MySQLStore) AppendBookLog(ctx context.Context, l *models.BookLog) error {
	const op = "store.append_book_log"
	createdAt := l.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	query, args, err := builder.Insert("book_logs").Rows(goqu.Record{
		"book_id":    l.BookID,
		"action":     l.Action,
		"actor":      l.Actor,
		"created_at": createdAt,
	}).Prepared(true).ToSQL()
	if err != nil {
		return errs.Wrap(errs.Dependency, op, err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return errs.Wrap(errs.Dependency, op, err)
	}
	return nil
}

func (s *MySQLStore) ListBookLogs(ctx context.Context, bookID string) ([]models.BookLog, error) {
	const op = "store.list_book_logs"
	query, args, err := builder.From("book_logs").
		Select("id", "book_id", "action", "actor", "created_at").
		Where(goqu.Ex{"book_id": bookID}).
		Order(goqu.C("created_at").Asc()).
		Prepared(true).ToSQL()
	if err != nil {
		return nil, errs.Wrap(errs.Dependency, op, err)
	}
	var logs []models.BookLog
	if err := s.db.SelectContext(ctx, &logs, query, args...); err != nil {
		return nil, errs.Wrap(errs.Dependency, op, err)
	}
	return logs, nil
}

func (s *MySQLStore) MostBorrowedBooks(ctx context.Context, limit int) ([]models.Book, error) {
	return s.topBooks(ctx, "store.most_borrowed_books", "borrow_count", limit)
}

func (s *MySQLStore) HighestRatedBooks(ctx context.Context, limit int) ([]models.Book, error) {
	return s.topBooks(ctx, "store.highest_rated_books", "average_rating", limit)
}

func (s *MySQLStore) topBooks(ctx context.Context, op, orderCol string, limit int) ([]models.Book, error) {
	query, args, err := builder.From("books").Select(bookCols...).
		Where(goqu.C("status").Neq(models.BookDeleted)).
		Order(goqu.C(orderCol).Desc()).
		Limit(fmtLimit(limit)).
		Prepared(true).ToSQL()
	if err != nil {
		return nil, errs.Wrap(errs.Dependency, op, err)
	}
	var books []models.Book
	if err := s.db.SelectContext(ctx, &books, query, args...); err != nil {
		return nil, errs.Wrap(errs.Dependency, op, err)
	}
	return books, nil
}
