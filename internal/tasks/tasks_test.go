package tasks_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"reluxrent/api/internal/config"
	"reluxrent/api/internal/email"
	"reluxrent/api/internal/models"
	"reluxrent/api/internal/push"
	"reluxrent/api/internal/services"
	"reluxrent/api/internal/tasks"
	"reluxrent/api/internal/utils"
)

// --- Mocks ---

type MockEmailSender struct {
	mock.Mock
}

func (m *MockEmailSender) Send(ctx context.Context, to []string, subject string, rawMessage []byte) error {
	args := m.Called(ctx, to, subject, rawMessage)
	return args.Error(0)
}

type MockEmailTemplateService struct {
	mock.Mock
}

func (m *MockEmailTemplateService) GetTemplate(ctx context.Context, templateID, locale string) (*models.EmailTemplate, error) {
	args := m.Called(ctx, templateID, locale)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.EmailTemplate), args.Error(1)
}

type MockPushSender struct {
	mock.Mock
}

func (m *MockPushSender) Send(ctx context.Context, msg push.Message) error {
	return m.Called(ctx, msg).Error(0)
}

type MockBookingExpirer struct {
	mock.Mock
}

func (m *MockBookingExpirer) ExpireBooking(ctx context.Context, id utils.SixID) (*models.Booking, bool, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*models.Booking), args.Bool(1), args.Error(2)
}

type MockEnqueuer struct {
	mock.Mock
}

func (m *MockEnqueuer) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	args := m.Called(ctx, task, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*asynq.TaskInfo), args.Error(1)
}

func newProcessor(cfg *config.Config, sender email.Sender, pusher push.Sender, expirer tasks.BookingExpirer, tmpl services.IEmailTemplateService) *tasks.TaskProcessor {
	return tasks.NewTaskProcessor(cfg, sender, pusher, expirer, tmpl, zap.NewNop())
}

// --- Email ---

func TestHandleEmailDeliveryTask_Success(t *testing.T) {
	mockEmailSender := new(MockEmailSender)
	mockTmplService := new(MockEmailTemplateService)
	cfg := &config.Config{SmtpFromAddress: "bookings@example.com"}
	p := newProcessor(cfg, mockEmailSender, nil, nil, mockTmplService)

	payloadBytes, _ := json.Marshal(tasks.EmailTaskPayload{
		To:         "guest@example.com",
		TemplateID: "booking_pre_approved",
		Locale:     "fr",
		Data: map[string]interface{}{
			"name":           "Ana",
			"property_title": "Sea View Loft",
			"link":           "http://example.com/bookings/1",
		},
	})
	task := asynq.NewTask(tasks.TypeEmailDelivery, payloadBytes)

	mockTmplService.On("GetTemplate", mock.Anything, "booking_pre_approved", "fr").Return(&models.EmailTemplate{
		Subject: "Pre-approved for {{.property_title}}",
		Body:    "Hi {{.name}}, book here: {{.link}} {{.missing}}",
	}, nil)

	mockEmailSender.On("Send",
		mock.Anything,
		[]string{"guest@example.com"},
		"Pre-approved for Sea View Loft",
		mock.MatchedBy(func(rawMsg []byte) bool {
			msg := string(rawMsg)
			assert.Contains(t, msg, "To: guest@example.com")
			assert.Contains(t, msg, "From: bookings@example.com")
			assert.Contains(t, msg, "Subject: Pre-approved for Sea View Loft")
			assert.Contains(t, msg, email.TemplateHeader+": booking_pre_approved")
			assert.Contains(t, msg, "Hi Ana, book here: http://example.com/bookings/1")
			assert.NotContains(t, msg, "<no value>")
			return true
		}),
	).Return(nil)

	err := p.HandleEmailDeliveryTask(context.Background(), task)

	assert.NoError(t, err)
	mockTmplService.AssertExpectations(t)
	mockEmailSender.AssertExpectations(t)
}

func TestHandleEmailDeliveryTask_DefaultLocale(t *testing.T) {
	mockEmailSender := new(MockEmailSender)
	mockTmplService := new(MockEmailTemplateService)
	p := newProcessor(&config.Config{}, mockEmailSender, nil, nil, mockTmplService)

	payloadBytes, _ := json.Marshal(tasks.EmailTaskPayload{To: "host@example.com", TemplateID: "booking_declined"})
	mockTmplService.On("GetTemplate", mock.Anything, "booking_declined", services.DefaultLocale).
		Return(&models.EmailTemplate{Subject: "Declined", Body: "Declined."}, nil)
	mockEmailSender.On("Send", mock.Anything, []string{"host@example.com"}, "Declined",
		mock.MatchedBy(func(raw []byte) bool {
			return assert.Contains(t, string(raw), "From: noreply@example.com")
		})).Return(nil)

	require.NoError(t, p.HandleEmailDeliveryTask(context.Background(), asynq.NewTask(tasks.TypeEmailDelivery, payloadBytes)))
	mockEmailSender.AssertExpectations(t)
}

func TestHandleEmailDeliveryTask_TemplateNotFound(t *testing.T) {
	mockEmailSender := new(MockEmailSender)
	mockTmplService := new(MockEmailTemplateService)
	p := newProcessor(&config.Config{}, mockEmailSender, nil, nil, mockTmplService)

	payloadBytes, _ := json.Marshal(tasks.EmailTaskPayload{
		To:         "test@example.com",
		TemplateID: "nonexistent_template",
		Locale:     "en",
	})
	task := asynq.NewTask(tasks.TypeEmailDelivery, payloadBytes)

	mockTmplService.On("GetTemplate", mock.Anything, "nonexistent_template", "en").Return(nil, assert.AnError)

	err := p.HandleEmailDeliveryTask(context.Background(), task)

	assert.Error(t, err)
	assert.True(t, errors.Is(err, asynq.SkipRetry), "Error should be SkipRetry for template not found")
	mockTmplService.AssertExpectations(t)
	mockEmailSender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestHandleEmailDeliveryTask_SendFailureIsRetried(t *testing.T) {
	mockEmailSender := new(MockEmailSender)
	mockTmplService := new(MockEmailTemplateService)
	p := newProcessor(&config.Config{}, mockEmailSender, nil, nil, mockTmplService)

	payloadBytes, _ := json.Marshal(tasks.EmailTaskPayload{To: "a@example.com", TemplateID: "booking_confirmed", Locale: "en"})
	mockTmplService.On("GetTemplate", mock.Anything, "booking_confirmed", "en").Return(&models.EmailTemplate{Subject: "s", Body: "b"}, nil)
	mockEmailSender.On("Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("smtp down"))

	err := p.HandleEmailDeliveryTask(context.Background(), asynq.NewTask(tasks.TypeEmailDelivery, payloadBytes))
	require.Error(t, err)
	assert.False(t, errors.Is(err, asynq.SkipRetry))
}

func TestHandleEmailDeliveryTask_BadPayload(t *testing.T) {
	p := newProcessor(&config.Config{}, nil, nil, nil, nil)
	err := p.HandleEmailDeliveryTask(context.Background(), asynq.NewTask(tasks.TypeEmailDelivery, []byte("{")))
	assert.True(t, errors.Is(err, asynq.SkipRetry))
}

// --- Push ---

func TestHandlePushNotificationTask(t *testing.T) {
	pusher := new(MockPushSender)
	p := newProcessor(&config.Config{}, nil, pusher, nil, nil)

	payloadBytes, _ := json.Marshal(tasks.PushTaskPayload{UserID: "U1", Token: "tok", Title: "Declined", Body: "b", Link: "l"})
	pusher.On("Send", mock.Anything, push.Message{
		Token: "tok", Title: "Declined", Body: "b", Link: "l", Data: map[string]string{"user_id": "U1"},
	}).Return(nil)

	require.NoError(t, p.HandlePushNotificationTask(context.Background(), asynq.NewTask(tasks.TypePushNotification, payloadBytes)))
	pusher.AssertExpectations(t)
}

func TestHandlePushNotificationTask_NoTokenSkipsRetry(t *testing.T) {
	pusher := new(MockPushSender)
	p := newProcessor(&config.Config{}, nil, pusher, nil, nil)
	pusher.On("Send", mock.Anything, mock.Anything).Return(push.ErrNoToken)

	payloadBytes, _ := json.Marshal(tasks.PushTaskPayload{UserID: "U1"})
	err := p.HandlePushNotificationTask(context.Background(), asynq.NewTask(tasks.TypePushNotification, payloadBytes))
	assert.True(t, errors.Is(err, asynq.SkipRetry))
}

// --- Booking expiry ---

func TestHandleBookingExpireTask(t *testing.T) {
	id := utils.NewSixID()
	payloadBytes, _ := json.Marshal(tasks.BookingExpireTaskPayload{BookingID: id.String()})
	task := asynq.NewTask(tasks.TypeBookingExpire, payloadBytes)

	t.Run("expires", func(t *testing.T) {
		expirer := new(MockBookingExpirer)
		p := newProcessor(&config.Config{}, nil, nil, expirer, nil)
		expirer.On("ExpireBooking", mock.Anything, id).Return(&models.Booking{BookingStatus: models.BookingStatusExpired}, true, nil)

		require.NoError(t, p.HandleBookingExpireTask(context.Background(), task))
		expirer.AssertExpectations(t)
	})

	t.Run("missing booking is not retried", func(t *testing.T) {
		expirer := new(MockBookingExpirer)
		p := newProcessor(&config.Config{}, nil, nil, expirer, nil)
		expirer.On("ExpireBooking", mock.Anything, id).Return(nil, false, fmt.Errorf("booking: %w", services.ErrNotFound))

		assert.NoError(t, p.HandleBookingExpireTask(context.Background(), task))
	})

	t.Run("storage error is retried", func(t *testing.T) {
		expirer := new(MockBookingExpirer)
		p := newProcessor(&config.Config{}, nil, nil, expirer, nil)
		expirer.On("ExpireBooking", mock.Anything, id).Return(nil, false, errors.New("mongo down"))

		err := p.HandleBookingExpireTask(context.Background(), task)
		require.Error(t, err)
		assert.False(t, errors.Is(err, asynq.SkipRetry))
	})

	t.Run("invalid id", func(t *testing.T) {
		p := newProcessor(&config.Config{}, nil, nil, new(MockBookingExpirer), nil)
		bad, _ := json.Marshal(tasks.BookingExpireTaskPayload{BookingID: "nope"})
		err := p.HandleBookingExpireTask(context.Background(), asynq.NewTask(tasks.TypeBookingExpire, bad))
		assert.True(t, errors.Is(err, asynq.SkipRetry))
	})
}

// --- Dispatcher ---

func TestDispatcher_NotifyUser(t *testing.T) {
	client := new(MockEnqueuer)
	d := tasks.NewDispatcher(client)
	user := &models.User{DeviceToken: "tok", Email: "guest@example.com", Locale: "de"}
	user.ID = utils.NewSixID()

	client.On("EnqueueContext", mock.Anything, mock.MatchedBy(func(task *asynq.Task) bool {
		var payload tasks.PushTaskPayload
		require.NoError(t, json.Unmarshal(task.Payload(), &payload))
		return task.Type() == tasks.TypePushNotification && payload.Token == "tok" && payload.Title == "Hello"
	}), mock.Anything).Return(&asynq.TaskInfo{ID: "1"}, nil).Once()

	require.NoError(t, d.NotifyUser(context.Background(), user, services.Notification{Title: "Hello"}))
	client.AssertExpectations(t)
}

func TestDispatcher_SkipsUsersWithoutChannels(t *testing.T) {
	client := new(MockEnqueuer)
	d := tasks.NewDispatcher(client)

	assert.NoError(t, d.NotifyUser(context.Background(), &models.User{}, services.Notification{Title: "x"}))
	assert.NoError(t, d.EmailUser(context.Background(), &models.User{}, "booking_confirmed", nil))
	client.AssertNotCalled(t, "EnqueueContext", mock.Anything, mock.Anything, mock.Anything)
}

func TestDispatcher_EmailUser(t *testing.T) {
	client := new(MockEnqueuer)
	d := tasks.NewDispatcher(client)

	client.On("EnqueueContext", mock.Anything, mock.MatchedBy(func(task *asynq.Task) bool {
		var payload tasks.EmailTaskPayload
		require.NoError(t, json.Unmarshal(task.Payload(), &payload))
		return task.Type() == tasks.TypeEmailDelivery &&
			payload.To == "host@example.com" && payload.Locale == "fr" && payload.TemplateID == "booking_confirmed"
	}), mock.Anything).Return(&asynq.TaskInfo{ID: "1"}, nil)

	err := d.EmailUser(context.Background(), &models.User{Email: "host@example.com", Locale: "fr"}, "booking_confirmed", map[string]interface{}{"x": 1})
	require.NoError(t, err)
	client.AssertExpectations(t)
}

func TestDispatcher_ScheduleBookingExpiry(t *testing.T) {
	id := utils.NewSixID()
	at := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)

	t.Run("enqueues", func(t *testing.T) {
		client := new(MockEnqueuer)
		client.On("EnqueueContext", mock.Anything, mock.MatchedBy(func(task *asynq.Task) bool {
			return task.Type() == tasks.TypeBookingExpire
		}), mock.Anything).Return(&asynq.TaskInfo{ID: tasks.ExpiryTaskID(id, at)}, nil)

		require.NoError(t, tasks.NewDispatcher(client).ScheduleBookingExpiry(context.Background(), id, at))
		client.AssertExpectations(t)
	})

	t.Run("duplicate schedule is a no-op", func(t *testing.T) {
		client := new(MockEnqueuer)
		client.On("EnqueueContext", mock.Anything, mock.Anything, mock.Anything).Return(nil, asynq.ErrTaskIDConflict)

		assert.NoError(t, tasks.NewDispatcher(client).ScheduleBookingExpiry(context.Background(), id, at))
	})

	t.Run("other errors surface", func(t *testing.T) {
		client := new(MockEnqueuer)
		client.On("EnqueueContext", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("redis down"))

		assert.Error(t, tasks.NewDispatcher(client).ScheduleBookingExpiry(context.Background(), id, at))
	})
}

func TestExpiryTaskID_Deterministic(t *testing.T) {
	id := utils.NewSixID()
	at := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, tasks.ExpiryTaskID(id, at), tasks.ExpiryTaskID(id, at))
	assert.NotEqual(t, tasks.ExpiryTaskID(id, at), tasks.ExpiryTaskID(id, at.Add(time.Hour)))
}
