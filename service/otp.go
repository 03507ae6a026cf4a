package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"log"
	"math/big"
	"time"

	"github.com/google/uuid"

	"librotek/errs"
	"librotek/models"
)

// DefaultOTPTTL is how long an issued code stays redeemable.
const DefaultOTPTTL = 10 * time.Minute

var otpSpace = big.NewInt(1000000)

// OTPGate issues and redeems the one-time codes gating a checkout.
// A code moves issued -> verified exactly once; expiry is checked at
// verification time, so stale records need no background sweeper.
type OTPGate struct {
	store      OTPStore
	dispatcher Dispatcher
	ttl        time.Duration
	now        func() time.Time
}

func NewOTPGate(store OTPStore, dispatcher Dispatcher, ttl time.Duration) *OTPGate {
	if ttl <= 0 {
		ttl = DefaultOTPTTL
	}
	return &OTPGate{store: store, dispatcher: dispatcher, ttl: ttl, now: time.Now}
}

// GenerateCode draws a uniformly random 6-digit numeric string. Leading
// zeros are preserved: "042137" is a valid code.
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, otpSpace)
	if err != nil {
		return "", errs.Wrap(errs.Dependency, "otp.generate", err)
	}
	return fmt.Sprintf("%06d", n), nil
}

// Issue generates, persists and dispatches a fresh code. Earlier unused
// codes for the same email stay valid; each is redeemable on its own.
func (g *OTPGate) Issue(ctx context.Context, email, phone string) (string, error) {
	const op = "otp.issue"
	if email == "" {
		return "", errs.E(errs.Validation, op, "email is required")
	}
	code, err := GenerateCode()
	if err != nil {
		return "", err
	}
	rec := &models.OTP{
		ID:        uuid.NewString(),
		Email:     email,
		Phone:     phone,
		Code:      code,
		CreatedAt: g.now(),
	}
	if err := g.store.CreateOTP(ctx, rec); err != nil {
		return "", errs.Wrap(errs.Dependency, op, err)
	}
	g.Dispatch(ctx, email, phone, code)
	return code, nil
}

// Verify redeems a code. It returns true and marks the record used on a
// match; a wrong, already-used or expired code returns false with no
// side effects. Only storage failures surface as errors.
func (g *OTPGate) Verify(ctx context.Context, email, code string) (bool, error) {
	const op = "otp.verify"
	rec, err := g.store.FindUnusedOTP(ctx, email, code)
	if err != nil {
		if errs.IsKind(err, errs.NotFound) {
			return false, nil
		}
		return false, errs.Wrap(errs.Dependency, op, err)
	}
	if g.now().Sub(rec.CreatedAt) > g.ttl {
		return false, nil
	}
	if err := g.store.MarkOTPUsed(ctx, rec.ID); err != nil {
		if errs.IsKind(err, errs.Conflict) {
			// Lost a race against another verification of the same code.
			return false, nil
		}
		return false, errs.Wrap(errs.Dependency, op, err)
	}
	return true, nil
}

// Dispatch delivers the code via email and/or SMS. Delivery failures are
// logged and never fail the issuing flow.
func (g *OTPGate) Dispatch(ctx context.Context, email, phone, code string) {
	body := fmt.Sprintf("Your OTP code for book borrowing is: %s. This code will expire in %d minutes.",
		code, int(g.ttl.Minutes()))
	if email != "" {
		if err := g.dispatcher.SendEmail(ctx, email, "Your Library OTP Code", body); err != nil {
			log.Printf("otp: email dispatch to %s failed: %v", email, err)
		}
	}
	if phone != "" {
		if err := g.dispatcher.SendSMS(ctx, phone, body); err != nil {
			log.Printf("otp: sms dispatch to %s failed: %v", phone, err)
		}
	}
}
