package store

import (
	"context"

	"github.com/doug-martin/goqu/v9"

	"librotek/errs"
	"librotek/models"
)

func (s *MySQLStore) CreateOTP(ctx context.Context, o *models.OTP) error {
	const op = "store.create_otp"
	query, args, err := builder.Insert("otps").Rows(goqu.Record{
		"id":         o.ID,
		"email":      o.Email,
		"phone":      o.Phone,
		"code":       o.Code,
		"created_at": o.CreatedAt,
		"is_used":    o.IsUsed,
	}).Prepared(true).ToSQL()
	if err != nil {
		return errs.Wrap(errs.Dependency, op, err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return errs.Wrap(errs.Dependency, op, err)
	}
	return nil
}

// FindUnusedOTP matches the (email, code, unused) triple. When several
// unused codes coexist for one email, the most recent match wins.
func (s *MySQLStore) FindUnusedOTP(ctx context.Context, email, code string) (*models.OTP, error) {
	const op = "store.find_unused_otp"
	query, args, err := builder.From("otps").
		Select("id", "email", "phone", "code", "created_at", "is_used").
		Where(goqu.Ex{"email": email, "code": code, "is_used": false}).
		Order(goqu.C("created_at").Desc()).
		Limit(1).
		Prepared(true).ToSQL()
	if err != nil {
		return nil, errs.Wrap(errs.Dependency, op, err)
	}
	var o models.OTP
	if err := s.db.GetContext(ctx, &o, query, args...); err != nil {
		if isNoRows(err) {
			return nil, errs.E(errs.NotFound, op, "otp not found")
		}
		return nil, errs.Wrap(errs.Dependency, op, err)
	}
	return &o, nil
}

func (s *MySQLStore) MarkOTPUsed(ctx context.Context, id string) error {
	const op = "store.mark_otp_used"
	// Conditional write so two concurrent verifications of the same code
	// cannot both succeed.
	moved, err := s.execAffected(ctx, op,
		"UPDATE otps SET is_used = TRUE WHERE id = ? AND is_used = FALSE", id)
	if err != nil {
		return err
	}
	if !moved {
		return errs.E(errs.Conflict, op, "otp already used")
	}
	return nil
}
