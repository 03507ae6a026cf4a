package store

import (
	"context"

	"github.com/doug-martin/goqu/v9"

	"librotek/errs"
	"librotek/models"
)

var userCols = []any{"id", "email", "password", "name", "phone", "role", "created_at"}

func (s *MySQLStore) CreateUser(ctx context.Context, u *models.User) error {
	const op = "store.create_user"
	var count int
	if err := s.db.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM users WHERE email = ?", u.Email); err != nil {
		return errs.Wrap(errs.Dependency, op, err)
	}
	if count > 0 {
		return errs.E(errs.Conflict, op, "a user with this email already exists")
	}

	query, args, err := builder.Insert("users").Rows(goqu.Record{
		"id":         u.ID,
		"email":      u.Email,
		"password":   u.Password,
		"name":       u.Name,
		"phone":      u.Phone,
		"role":       u.Role,
		"created_at": u.CreatedAt,
	}).Prepared(true).ToSQL()
	if err != nil {
		return errs.Wrap(errs.Dependency, op, err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return errs.Wrap(errs.Dependency, op, err)
	}
	return nil
}

func (s *MySQLStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getUser(ctx, goqu.Ex{"email": email})
}

func (s *MySQLStore) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return s.getUser(ctx, goqu.Ex{"id": id})
}

func (s *MySQLStore) getUser(ctx context.Context, where goqu.Ex) (*models.User, error) {
	const op = "store.get_user"
	query, args, err := builder.From("users").Select(userCols...).
		Where(where).Prepared(true).ToSQL()
	if err != nil {
		return nil, errs.Wrap(errs.Dependency, op, err)
	}
	var u models.User
	if err := s.db.GetContext(ctx, &u, query, args...); err != nil {
		if isNoRows(err) {
			return nil, errs.E(errs.NotFound, op, "user not found")
		}
		return nil, errs.Wrap(errs.Dependency, op, err)
	}
	return &u, nil
}

func (s *MySQLStore) ListUsers(ctx context.Context) ([]models.User, error) {
	const op = "store.list_users"
	query, args, err := builder.From("users").Select(userCols...).
		Order(goqu.C("created_at").Asc()).Prepared(true).ToSQL()
	if err != nil {
		return nil, errs.Wrap(errs.Dependency, op, err)
	}
	var users []models.User
	if err := s.db.SelectContext(ctx, &users, query, args...); err != nil {
		return nil, errs.Wrap(errs.Dependency, op, err)
	}
	return users, nil
}

func (s *MySQLStore) UpdateUser(ctx context.Context, u *models.User) error {
	const op = "store.update_user"
	query, args, err := builder.Update("users").Set(goqu.Record{
		"name":  u.Name,
		"phone": u.Phone,
		"role":  u.Role,
	}).Where(goqu.Ex{"id": u.ID}).Prepared(true).ToSQL()
	if err != nil {
		return errs.Wrap(errs.Dependency, op, err)
	}
	moved, err := s.execAffected(ctx, op, query, args...)
	if err != nil {
		return err
	}
	if !moved {
		if _, getErr := s.GetUserByID(ctx, u.ID); getErr != nil {
			return getErr
		}
	}
	return nil
}

func (s *MySQLStore) DeleteUser(ctx context.Context, id string) error {
	const op = "store.delete_user"
	moved, err := s.execAffected(ctx, op, "DELETE FROM users WHERE id = ?", id)
	if err != nil {
		return err
	}
	if !moved {
		return errs.E(errs.NotFound, op, "user not found")
	}
	return nil
}
