package store

import (
	"context"
	"time"

	"github.com/doug-martin/goqu/v9"

	"librotek/errs"
	"librotek/models"
)

// CreateNotification deduplicates: the same message is not stored twice
// for one user, so a periodic worker can re-emit reminders without
// spamming the inbox.
func (s *MySQLStore) CreateNotification(ctx context.Context, userID, message string) error {
	const op = "store.create_notification"
	var count int
	if err := s.db.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM notifications WHERE user_id = ? AND message = ?",
		userID, message); err != nil {
		return errs.Wrap(errs.Dependency, op, err)
	}
	if count > 0 {
		return nil
	}

	query, args, err := builder.Insert("notifications").Rows(goqu.Record{
		"user_id":    userID,
		"message":    message,
		"is_read":    false,
		"created_at": time.Now(),
	}).Prepared(true).ToSQL()
	if err != nil {
		return errs.Wrap(errs.Dependency, op, err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return errs.Wrap(errs.Dependency, op, err)
	}
	return nil
}

func (s *MySQLStore) ListNotifications(ctx context.Context, userID string) ([]models.Notification, error) {
	const op = "store.list_notifications"
	query, args, err := builder.From("notifications").
		Select("id", "user_id", "message", "is_read", "created_at").
		Where(goqu.Ex{"user_id": userID}).
		Order(goqu.C("created_at").Desc()).
		Prepared(true).ToSQL()
	if err != nil {
		return nil, errs.Wrap(errs.Dependency, op, err)
	}
	var notifs []models.Notification
	if err := s.db.SelectContext(ctx, &notifs, query, args...); err != nil {
		return nil, errs.Wrap(errs.Dependency, op, err)
	}
	return notifs, nil
}

func (s *MySQLStore) MarkNotificationRead(ctx context.Context, id int) error {
	const op = "store.mark_notification_read"
	if _, err := s.db.ExecContext(ctx,
		"UPDATE notifications SET is_read = TRUE WHERE id = ?", id); err != nil {
		return errs.Wrap(errs.Dependency, op, err)
	}
	return nil
}

func (s *MySQLStore) DeleteNotification(ctx context.Context, id int) error {
	const op = "store.delete_notification"
	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM notifications WHERE id = ?", id); err != nil {
		return errs.Wrap(errs.Dependency, op, err)
	}
	return nil
}
