package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"reluxrent/api/internal/models"
	"reluxrent/api/internal/services"
	"reluxrent/api/internal/utils"
)

// Enqueuer is the part of *asynq.Client the dispatcher uses.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// expiryNamespace seeds deterministic expiry task IDs.
var expiryNamespace = uuid.MustParse("6f1c3b7e-2d4a-4f5e-9a8b-1c2d3e4f5a6b")

// Dispatcher queues notifications and expiry checks. It implements services.INotifier
// and services.IExpiryScheduler.
type Dispatcher struct {
	client Enqueuer
}

func NewDispatcher(client Enqueuer) *Dispatcher {
	return &Dispatcher{client: client}
}

var (
	_ services.INotifier        = (*Dispatcher)(nil)
	_ services.IExpiryScheduler = (*Dispatcher)(nil)
)

func (d *Dispatcher) enqueue(ctx context.Context, taskType string, payload interface{}, opts ...asynq.Option) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", taskType, err)
	}
	if _, err := d.client.EnqueueContext(ctx, asynq.NewTask(taskType, data), opts...); err != nil {
		return fmt.Errorf("failed to enqueue %s: %w", taskType, err)
	}
	return nil
}

// NotifyUser queues a push notification. Users without a device token are skipped.
func (d *Dispatcher) NotifyUser(ctx context.Context, user *models.User, n services.Notification) error {
	if user.DeviceToken == "" {
		return nil
	}
	return d.enqueue(ctx, TypePushNotification, PushTaskPayload{
		UserID: user.ID.String(),
		Token:  user.DeviceToken,
		Title:  n.Title,
		Body:   n.Body,
		Link:   n.Link,
	}, asynq.Queue(QueueDefault), asynq.MaxRetry(3))
}

// EmailUser queues a templated email in the user's locale.
func (d *Dispatcher) EmailUser(ctx context.Context, user *models.User, templateID string, data map[string]interface{}) error {
	if user.Email == "" {
		return nil
	}
	return d.enqueue(ctx, TypeEmailDelivery, EmailTaskPayload{
		To:         user.Email,
		TemplateID: templateID,
		Locale:     user.Locale,
		Data:       data,
	}, asynq.Queue(QueueCritical))
}

// ExpiryTaskID is stable for a booking and deadline, so rescheduling the same deadline is a no-op.
func ExpiryTaskID(bookingID utils.SixID, at time.Time) string {
	return uuid.NewSHA1(expiryNamespace, []byte(fmt.Sprintf("%s@%d", bookingID, at.Unix()))).String()
}

func (d *Dispatcher) ScheduleBookingExpiry(ctx context.Context, bookingID utils.SixID, at time.Time) error {
	err := d.enqueue(ctx, TypeBookingExpire, BookingExpireTaskPayload{BookingID: bookingID.String()},
		asynq.ProcessAt(at),
		asynq.TaskID(ExpiryTaskID(bookingID, at)),
		asynq.Queue(QueueDefault),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	return err
}
