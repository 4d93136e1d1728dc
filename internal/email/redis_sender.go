package email

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/textproto"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"reluxrent/api/internal/config"
)

const capturedEmailTTL = 5 * time.Minute

// ErrNoCapturedEmail is returned when no captured email matches.
var ErrNoCapturedEmail = errors.New("no captured email")

// CapturedEmail is the JSON stored for each captured message.
type CapturedEmail struct {
	To         string `json:"to"`
	From       string `json:"from"`
	Subject    string `json:"subject"`
	Body       string `json:"body"`
	TemplateID string `json:"template_id"`
	SentAt     string `json:"sent_at"`
}

// RedisSender captures emails in Redis instead of delivering them, keyed by recipient
// and template so end-to-end tests can read them back.
type RedisSender struct {
	client redis.Cmdable
	cfg    *config.Config
	logger *zap.Logger
	now    func() time.Time
}

func NewRedisSender(client redis.Cmdable, cfg *config.Config, logger *zap.Logger) *RedisSender {
	return &RedisSender{client: client, cfg: cfg, logger: logger, now: time.Now}
}

// CaptureKey is the Redis key of the last email sent to a recipient from a template.
func CaptureKey(to, templateID string) string {
	return fmt.Sprintf("mockemail:%s:%s", strings.ToLower(to), templateID)
}

// splitMessage separates the headers of a raw message from its body.
func splitMessage(raw []byte) (textproto.MIMEHeader, string) {
	reader := textproto.NewReader(bufio.NewReader(bytes.NewReader(raw)))
	header, err := reader.ReadMIMEHeader()
	if err != nil && header == nil {
		return textproto.MIMEHeader{}, string(raw)
	}
	if idx := bytes.Index(raw, []byte("\r\n\r\n")); idx >= 0 {
		return header, strings.TrimRight(string(raw[idx+4:]), "\r\n")
	}
	return header, ""
}

func (s *RedisSender) Send(ctx context.Context, to []string, subject string, rawMessage []byte) error {
	header, body := splitMessage(rawMessage)
	templateID := header.Get(TemplateHeader)
	if templateID == "" {
		templateID = "unknown"
	}

	captured := CapturedEmail{
		To:         strings.Join(to, ", "),
		From:       s.cfg.SmtpFromAddress,
		Subject:    subject,
		Body:       body,
		TemplateID: templateID,
		SentAt:     s.now().UTC().Format(time.RFC3339Nano),
	}
	jsonData, err := json.Marshal(captured)
	if err != nil {
		return fmt.Errorf("failed to marshal email data: %w", err)
	}

	for _, recipient := range to {
		key := CaptureKey(recipient, templateID)
		if err := s.client.Set(ctx, key, jsonData, capturedEmailTTL).Err(); err != nil {
			return fmt.Errorf("failed to store email in Redis key '%s': %w", key, err)
		}
		s.logger.Debug("Captured email in Redis", zap.String("key", key), zap.String("subject", subject))
	}
	return nil
}

// GetCaptured reads back the last captured email for a recipient and template.
func (s *RedisSender) GetCaptured(ctx context.Context, to, templateID string) (*CapturedEmail, error) {
	raw, err := s.client.Get(ctx, CaptureKey(to, templateID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoCapturedEmail
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read captured email: %w", err)
	}
	var captured CapturedEmail
	if err := json.Unmarshal(raw, &captured); err != nil {
		return nil, fmt.Errorf("failed to decode captured email: %w", err)
	}
	return &captured, nil
}
