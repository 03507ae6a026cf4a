package workers

import (
	"context"
	"fmt"
	"log"
	"time"

	"librotek/service"
	"librotek/store"
	"librotek/utils"
)

// Notifier periodically scans the active ledger and sends due-date
// reminders and overdue warnings. Reminders go out by email through the
// dispatcher; borrowers with an account also get an in-app notification,
// pushed live over the hub when they are connected.
type Notifier struct {
	Store      store.Store
	Dispatcher service.Dispatcher
	Hub        *utils.Hub
	Interval   time.Duration
}

func NewNotifier(st store.Store, d service.Dispatcher, hub *utils.Hub, interval time.Duration) *Notifier {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	return &Notifier{Store: st, Dispatcher: d, Hub: hub, Interval: interval}
}

// Start runs the scan loop until ctx is cancelled. The first scan fires
// immediately.
func (n *Notifier) Start(ctx context.Context) {
	ticker := time.NewTicker(n.Interval)
	go func() {
		defer ticker.Stop()
		n.Check(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n.Check(ctx)
			}
		}
	}()
}

// Check walks the active borrows once. In-store duplicates are filtered
// by the notification store itself, so running Check more often than
// messages change is harmless.
func (n *Notifier) Check(ctx context.Context) {
	log.Println("notifier: scanning active borrows for reminders")
	records, err := n.Store.ListActiveBorrows(ctx)
	if err != nil {
		log.Printf("notifier: list active borrows: %v", err)
		return
	}

	now := time.Now()
	for _, rec := range records {
		title := "your borrowed book"
		if book, err := n.Store.GetBookByID(ctx, rec.BookID); err == nil {
			title = fmt.Sprintf("'%s'", book.Title)
		}

		var msg string
		switch {
		case service.IsOverdue(&rec, now):
			daysLate := int(now.Sub(rec.DueDate).Hours() / 24)
			if daysLate < 1 {
				daysLate = 1
			}
			msg = fmt.Sprintf("OVERDUE: %s is %d day(s) past its due date. Please return it as soon as possible.", title, daysLate)
		case rec.DueDate.After(now) && rec.DueDate.Sub(now) < 24*time.Hour:
			msg = fmt.Sprintf("REMINDER: %s is due back tomorrow (%s).", title, rec.DueDate.Format("02 Jan 2006"))
		default:
			continue
		}

		n.deliver(ctx, rec.BorrowerEmail, msg)
	}
}

func (n *Notifier) deliver(ctx context.Context, email, msg string) {
	if err := n.Dispatcher.SendEmail(ctx, email, "Library reminder", msg); err != nil {
		log.Printf("notifier: email to %s failed: %v", email, err)
	}

	// In-app delivery needs an account; borrow records carry only the
	// snapshot email.
	user, err := n.Store.GetUserByEmail(ctx, email)
	if err != nil {
		return
	}
	if err := n.Store.CreateNotification(ctx, user.ID, msg); err != nil {
		log.Printf("notifier: store notification for %s failed: %v", user.ID, err)
		return
	}
	if n.Hub != nil {
		n.Hub.Notify(user.ID, msg)
	}
}
