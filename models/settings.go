package models

// Settings holds deployment-wide lending policy. Values are seeded with
// defaults on schema init and editable in the database.
type Settings struct {
	ID             int `json:"id" db:"id"`
	LoanPeriodDays int `json:"loan_period_days" db:"loan_period_days"`
	OTPTTLMinutes  int `json:"otp_ttl_minutes" db:"otp_ttl_minutes"`
}
