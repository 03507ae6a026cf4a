package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/mysql" // dialect import
	_ "github.com/go-sql-driver/mysql"               // driver import
	"github.com/jmoiron/sqlx"

	"librotek/errs"
	"librotek/models"
)

// builder renders every statement before it is handed to sqlx.
var builder = goqu.Dialect("mysql")

type MySQLStore struct {
	db *sqlx.DB
}

var _ Store = (*MySQLStore)(nil)

// NewMySQLStore opens and pings the database. The DSN must carry
// parseTime=true so DATETIME columns scan into time.Time.
func NewMySQLStore(ctx context.Context, dsn string) (*MySQLStore, error) {
	db, err := sqlx.Open("mysql", dsn)
	if err != nil {
		return nil, errs.Wrap(errs.Dependency, "store.open", err)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, errs.Wrap(errs.Dependency, "store.ping", err)
	}
	db.SetMaxOpenConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)
	return &MySQLStore{db: db}, nil
}

func (s *MySQLStore) Close() error {
	return s.db.Close()
}

// InitSchema creates the tables on first run and seeds default settings.
func (s *MySQLStore) InitSchema(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id VARCHAR(36) PRIMARY KEY,
			email VARCHAR(255) NOT NULL UNIQUE,
			password VARCHAR(255) NOT NULL,
			name VARCHAR(255) NOT NULL DEFAULT '',
			phone VARCHAR(50) NOT NULL DEFAULT '',
			role VARCHAR(50) NOT NULL,
			created_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS books (
			id VARCHAR(36) PRIMARY KEY,
			title VARCHAR(255) NOT NULL,
			author VARCHAR(255) NOT NULL,
			isbn VARCHAR(32) NOT NULL DEFAULT '',
			category VARCHAR(255) NOT NULL DEFAULT '',
			publisher VARCHAR(255) NOT NULL DEFAULT '',
			description TEXT,
			page_count INT NOT NULL DEFAULT 0,
			published_year INT NOT NULL DEFAULT 0,
			cover_url VARCHAR(512) NOT NULL DEFAULT '',
			shelf_location VARCHAR(255) NOT NULL DEFAULT '',
			status VARCHAR(20) NOT NULL,
			borrow_count INT NOT NULL DEFAULT 0,
			average_rating DOUBLE NOT NULL DEFAULT 0,
			added_by VARCHAR(255) NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL,
			INDEX idx_books_status (status)
		)`,
		`CREATE TABLE IF NOT EXISTS borrows (
			id VARCHAR(36) PRIMARY KEY,
			book_id VARCHAR(36) NOT NULL,
			borrower_name VARCHAR(255) NOT NULL,
			borrower_email VARCHAR(255) NOT NULL,
			borrower_phone VARCHAR(50) NOT NULL DEFAULT '',
			borrow_date DATETIME NOT NULL,
			due_date DATETIME NOT NULL,
			return_date DATETIME,
			status VARCHAR(20) NOT NULL,
			FOREIGN KEY (book_id) REFERENCES books(id),
			INDEX idx_borrows_status (status),
			INDEX idx_borrows_email (borrower_email)
		)`,
		`CREATE TABLE IF NOT EXISTS otps (
			id VARCHAR(36) PRIMARY KEY,
			email VARCHAR(255) NOT NULL,
			phone VARCHAR(50) NOT NULL DEFAULT '',
			code VARCHAR(6) NOT NULL,
			created_at DATETIME NOT NULL,
			is_used BOOLEAN NOT NULL DEFAULT FALSE,
			INDEX idx_otps_lookup (email, code, is_used)
		)`,
		`CREATE TABLE IF NOT EXISTS book_logs (
			id INT AUTO_INCREMENT PRIMARY KEY,
			book_id VARCHAR(36) NOT NULL,
			action VARCHAR(50) NOT NULL,
			actor VARCHAR(255) NOT NULL,
			created_at DATETIME NOT NULL,
			INDEX idx_book_logs_book (book_id)
		)`,
		`CREATE TABLE IF NOT EXISTS book_ratings (
			id INT AUTO_INCREMENT PRIMARY KEY,
			book_id VARCHAR(36) NOT NULL,
			score INT NOT NULL,
			actor VARCHAR(255) NOT NULL,
			created_at DATETIME NOT NULL,
			INDEX idx_book_ratings_book (book_id)
		)`,
		`CREATE TABLE IF NOT EXISTS notifications (
			id INT AUTO_INCREMENT PRIMARY KEY,
			user_id VARCHAR(36) NOT NULL,
			message TEXT NOT NULL,
			is_read BOOLEAN NOT NULL DEFAULT FALSE,
			created_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS settings (
			id INT PRIMARY KEY,
			loan_period_days INT NOT NULL DEFAULT 14,
			otp_ttl_minutes INT NOT NULL DEFAULT 10
		)`,
	}

	for _, query := range queries {
		if _, err := s.db.ExecContext(ctx, query); err != nil {
			return errs.Wrapf(errs.Dependency, "store.init_schema", err, "failed query: %s", query)
		}
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT IGNORE INTO settings (id, loan_period_days, otp_ttl_minutes) VALUES (1, 14, 10)")
	if err != nil {
		return errs.Wrap(errs.Dependency, "store.init_schema", err)
	}
	return nil
}

func (s *MySQLStore) GetSettings(ctx context.Context) (*models.Settings, error) {
	query, args, err := builder.From("settings").
		Select("id", "loan_period_days", "otp_ttl_minutes").
		Where(goqu.Ex{"id": 1}).
		Prepared(true).ToSQL()
	if err != nil {
		return nil, errs.Wrap(errs.Dependency, "store.get_settings", err)
	}
	var set models.Settings
	if err := s.db.GetContext(ctx, &set, query, args...); err != nil {
		if isNoRows(err) {
			// Seed row missing; fall back to defaults.
			return &models.Settings{ID: 1, LoanPeriodDays: 14, OTPTTLMinutes: 10}, nil
		}
		return nil, errs.Wrap(errs.Dependency, "store.get_settings", err)
	}
	return &set, nil
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// execAffected runs an exec statement and reports whether any row moved.
func (s *MySQLStore) execAffected(ctx context.Context, op, query string, args ...any) (bool, error) {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, errs.Wrap(errs.Dependency, op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errs.Wrap(errs.Dependency, op, err)
	}
	return n > 0, nil
}

func fmtLimit(limit int) uint {
	if limit <= 0 {
		return 10
	}
	return uint(limit)
}
