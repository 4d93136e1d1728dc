package tasks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"reluxrent/api/internal/config"
	"reluxrent/api/internal/email"
	"reluxrent/api/internal/models"
	"reluxrent/api/internal/push"
	"reluxrent/api/internal/services"
	"reluxrent/api/internal/utils"
)

// TaskType defines the type of a background task.
const (
	TypeEmailDelivery    = "email:deliver"
	TypePushNotification = "push:deliver"
	TypeBookingExpire    = "booking:expire"
)

// Queue names and their priorities.
const (
	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueLow      = "low"
)

// RedisOpt builds the asynq connection from the application's Redis settings.
func RedisOpt(cfg *config.Config) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}
}

func NewClient(cfg *config.Config) *asynq.Client {
	return asynq.NewClient(RedisOpt(cfg))
}

// BookingExpirer closes bookings whose acceptance window has passed.
type BookingExpirer interface {
	ExpireBooking(ctx context.Context, bookingID utils.SixID) (*models.Booking, bool, error)
}

// TaskProcessor handles the processing of tasks.
type TaskProcessor struct {
	cfg                  *config.Config
	emailSender          email.Sender
	pushSender           push.Sender
	bookings             BookingExpirer
	emailTemplateService services.IEmailTemplateService
	logger               *zap.Logger
}

func NewTaskProcessor(
	cfg *config.Config,
	emailSender email.Sender,
	pushSender push.Sender,
	bookings BookingExpirer,
	emailTemplateService services.IEmailTemplateService,
	logger *zap.Logger,
) *TaskProcessor {
	return &TaskProcessor{
		cfg:                  cfg,
		emailSender:          emailSender,
		pushSender:           pushSender,
		bookings:             bookings,
		emailTemplateService: emailTemplateService,
		logger:               logger,
	}
}

// SetupServer configures the asynq server and its handlers. The caller starts and stops it.
func SetupServer(cfg *config.Config, processor *TaskProcessor) (*asynq.Server, *asynq.ServeMux) {
	logger := processor.logger
	srv := asynq.NewServer(
		RedisOpt(cfg),
		asynq.Config{
			Queues: map[string]int{
				QueueCritical: 6,
				QueueDefault:  3,
				QueueLow:      1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("Task failed",
					zap.String("type", task.Type()),
					zap.ByteString("payload", task.Payload()),
					zap.Error(err),
				)
			}),
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeEmailDelivery, processor.HandleEmailDeliveryTask)
	mux.HandleFunc(TypePushNotification, processor.HandlePushNotificationTask)
	mux.HandleFunc(TypeBookingExpire, processor.HandleBookingExpireTask)
	return srv, mux
}

// --- Task Handlers ---

// EmailTaskPayload is a templated email for one recipient.
type EmailTaskPayload struct {
	To         string                 `json:"to"`
	TemplateID string                 `json:"template_id"`
	Locale     string                 `json:"locale,omitempty"`
	Data       map[string]interface{} `json:"data"`
}

func render(name, text string, data map[string]interface{}) (string, error) {
	tmpl, err := template.New(name).Option("missingkey=zero").Parse(text)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return strings.ReplaceAll(buf.String(), "<no value>", ""), nil
}

func (p *TaskProcessor) HandleEmailDeliveryTask(ctx context.Context, t *asynq.Task) error {
	var payload EmailTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal email task payload: %v: %w", err, asynq.SkipRetry)
	}
	logger := p.logger.With(zap.String("to", payload.To), zap.String("template", payload.TemplateID))

	locale := payload.Locale
	if locale == "" {
		locale = services.DefaultLocale
	}

	tmpl, err := p.emailTemplateService.GetTemplate(ctx, payload.TemplateID, locale)
	if err != nil {
		logger.Error("Email template not found", zap.String("locale", locale), zap.Error(err))
		return fmt.Errorf("email template not found: %w", asynq.SkipRetry)
	}

	subject, err := render("subject", tmpl.Subject, payload.Data)
	if err != nil {
		return fmt.Errorf("failed to render subject: %v: %w", err, asynq.SkipRetry)
	}
	body, err := render("body", tmpl.Body, payload.Data)
	if err != nil {
		return fmt.Errorf("failed to render body: %v: %w", err, asynq.SkipRetry)
	}

	fromAddress := p.cfg.SmtpFromAddress
	if fromAddress == "" {
		fromAddress = "noreply@example.com"
		logger.Warn("SmtpFromAddress not configured, using fallback", zap.String("from", fromAddress))
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("To: %s\r\n", payload.To))
	sb.WriteString(fmt.Sprintf("From: %s\r\n", fromAddress))
	sb.WriteString(fmt.Sprintf("Subject: %s\r\n", subject))
	sb.WriteString(fmt.Sprintf("%s: %s\r\n", email.TemplateHeader, payload.TemplateID))
	sb.WriteString("Date: " + time.Now().Format(time.RFC1123Z) + "\r\n")
	sb.WriteString("MIME-Version: 1.0\r\n")
	sb.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	sb.WriteString("\r\n")
	sb.WriteString(body)
	sb.WriteString("\r\n")

	if err := p.emailSender.Send(ctx, []string{payload.To}, subject, []byte(sb.String())); err != nil {
		logger.Warn("Email sending failed, will retry", zap.Error(err))
		return err
	}

	logger.Info("Email task processed")
	return nil
}

// PushTaskPayload is one push notification for one device.
type PushTaskPayload struct {
	UserID string `json:"user_id"`
	Token  string `json:"token"`
	Title  string `json:"title"`
	Body   string `json:"body"`
	Link   string `json:"link,omitempty"`
}

func (p *TaskProcessor) HandlePushNotificationTask(ctx context.Context, t *asynq.Task) error {
	var payload PushTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal push task payload: %v: %w", err, asynq.SkipRetry)
	}

	err := p.pushSender.Send(ctx, push.Message{
		Token: payload.Token,
		Title: payload.Title,
		Body:  payload.Body,
		Link:  payload.Link,
		Data:  map[string]string{"user_id": payload.UserID},
	})
	if errors.Is(err, push.ErrNoToken) {
		return fmt.Errorf("push task without device token: %w", asynq.SkipRetry)
	}
	if err != nil {
		p.logger.Warn("Push delivery failed, will retry", zap.String("user_id", payload.UserID), zap.Error(err))
		return err
	}
	return nil
}

// BookingExpireTaskPayload names the booking to expire.
type BookingExpireTaskPayload struct {
	BookingID string `json:"booking_id"`
}

// HandleBookingExpireTask expires a booking whose window has passed. Stale tasks, for
// bookings confirmed, declined or re-offered since scheduling, are no-ops.
func (p *TaskProcessor) HandleBookingExpireTask(ctx context.Context, t *asynq.Task) error {
	var payload BookingExpireTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal expire task payload: %v: %w", err, asynq.SkipRetry)
	}
	bookingID, err := utils.ParseSixID(payload.BookingID)
	if err != nil || bookingID.IsZero() {
		return fmt.Errorf("invalid booking ID %q: %w", payload.BookingID, asynq.SkipRetry)
	}

	booking, changed, err := p.bookings.ExpireBooking(ctx, bookingID)
	if errors.Is(err, services.ErrNotFound) {
		p.logger.Info("Booking to expire no longer exists", zap.String("booking_id", payload.BookingID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to expire booking %s: %w", payload.BookingID, err)
	}
	p.logger.Info("Booking expiry checked",
		zap.String("booking_id", payload.BookingID),
		zap.Bool("expired", changed),
		zap.String("status", string(booking.BookingStatus)),
	)
	return nil
}
