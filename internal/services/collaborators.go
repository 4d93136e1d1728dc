package services

import (
	"context"
	"time"

	"reluxrent/api/internal/models"
	"reluxrent/api/internal/utils"
)

// Notification is a push message for one user.
type Notification struct {
	Title string
	Body  string
	Link  string
}

// INotifier dispatches push notifications and templated emails. Both are best-effort:
// callers log failures and never roll back on them.
type INotifier interface {
	NotifyUser(ctx context.Context, user *models.User, n Notification) error
	EmailUser(ctx context.Context, user *models.User, templateID string, data map[string]interface{}) error
}

// IExpiryScheduler arranges for a pre-approved or offered booking to expire.
type IExpiryScheduler interface {
	ScheduleBookingExpiry(ctx context.Context, bookingID utils.SixID, at time.Time) error
}

// ILocker serializes booking writes per property.
type ILocker interface {
	Lock(ctx context.Context, propertyID utils.SixID) (unlock func(), err error)
}

// Actor identifies the caller of a mutating operation.
type Actor struct {
	UserID    utils.SixID
	IsAdmin   bool
	IP        string
	UserAgent string
}

func (a Actor) meta() models.RequestMeta {
	return models.RequestMeta{IP: a.IP, UserAgent: a.UserAgent}
}
