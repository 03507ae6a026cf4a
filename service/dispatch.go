package service

import (
	"context"
	"log"
)

// LogDispatcher writes deliveries to the process log instead of sending
// them. It stands in wherever a real email/SMS gateway is not wired up,
// keeping the issuing and reminder flows exercisable end to end.
type LogDispatcher struct{}

var _ Dispatcher = LogDispatcher{}

func (LogDispatcher) SendEmail(_ context.Context, to, subject, body string) error {
	log.Printf("dispatch email to=%s subject=%q body=%q", to, subject, body)
	return nil
}

func (LogDispatcher) SendSMS(_ context.Context, to, body string) error {
	log.Printf("dispatch sms to=%s body=%q", to, body)
	return nil
}
