package models

import "time"

// OTP is a one-time numeric code binding a borrower identity to a
// pending borrow action. IsUsed flips false to true exactly once, on
// successful verification. Several unused codes may coexist for the
// same email; each is redeemable independently.
type OTP struct {
	ID        string    `json:"id" db:"id"`
	Email     string    `json:"email" db:"email"`
	Phone     string    `json:"phone" db:"phone"`
	Code      string    `json:"code" db:"code"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	IsUsed    bool      `json:"is_used" db:"is_used"`
}

// OTPRequest is the payload for issuing a code.
type OTPRequest struct {
	Phone string `json:"phone"`
}
