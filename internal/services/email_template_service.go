package services

import (
	"context"
	"errors"
	"fmt"

	"reluxrent/api/internal/models"
	"reluxrent/api/internal/repository"
)

// Default email templates used as fallback when not found in database
var defaultEmailTemplates = map[string]models.EmailTemplate{
	"booking_request_received": {
		TemplateID: "booking_request_received",
		Locale:     DefaultLocale,
		Subject:    "New booking request for {{.property_title}}",
		Body:       "Hi {{.name}}, you have a new booking request for {{.property_title}} from {{.start_date}} to {{.end_date}} ({{.guests}} guests). Respond here: {{.link}}",
	},
	"booking_inquiry_received": {
		TemplateID: "booking_inquiry_received",
		Locale:     DefaultLocale,
		Subject:    "New inquiry about {{.property_title}}",
		Body:       "Hi {{.name}}, a guest sent you an inquiry about {{.property_title}}. Reply here: {{.link}}",
	},
	"booking_pre_approved": {
		TemplateID: "booking_pre_approved",
		Locale:     DefaultLocale,
		Subject:    "You're pre-approved for {{.property_title}}",
		Body:       "Hi {{.name}}, your host pre-approved your stay from {{.start_date}} to {{.end_date}}. Book within 24 hours: {{.link}}",
	},
	"booking_special_offer": {
		TemplateID: "booking_special_offer",
		Locale:     DefaultLocale,
		Subject:    "Special offer for {{.property_title}}",
		Body:       "Hi {{.name}}, your host sent you a special offer for {{.start_date}} to {{.end_date}}, total {{.grand_total}}. View it here: {{.link}}",
	},
	"booking_confirmed": {
		TemplateID: "booking_confirmed",
		Locale:     DefaultLocale,
		Subject:    "Reservation confirmed: {{.property_title}}",
		Body:       "Hi {{.name}}, reservation {{.confirmation_code}} for {{.property_title}} ({{.start_date}} to {{.end_date}}) is confirmed. Details: {{.link}}",
	},
	"booking_declined": {
		TemplateID: "booking_declined",
		Locale:     DefaultLocale,
		Subject:    "Booking declined: {{.property_title}}",
		Body:       "Hi {{.name}}, the booking for {{.property_title}} was declined. Details: {{.link}}",
	},
}

// IEmailTemplateService defines the interface for email template operations.
type IEmailTemplateService interface {
	GetTemplate(ctx context.Context, templateID, locale string) (*models.EmailTemplate, error)
}

// EmailTemplateService handles operations related to email templates
type EmailTemplateService struct {
	repo repository.EmailTemplateRepository
}

// NewEmailTemplateService creates a new instance of EmailTemplateService
func NewEmailTemplateService(repo repository.EmailTemplateRepository) *EmailTemplateService {
	return &EmailTemplateService{repo: repo}
}

// GetTemplate looks up the template for locale, then the default locale, then the built-in defaults.
func (s *EmailTemplateService) GetTemplate(ctx context.Context, templateID string, locale string) (*models.EmailTemplate, error) {
	locales := []string{locale}
	if locale != DefaultLocale {
		locales = append(locales, DefaultLocale)
	}
	for _, l := range locales {
		template, err := s.repo.FindEmailTemplate(ctx, templateID, l)
		if err == nil {
			return template, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("error retrieving template: %w", err)
		}
	}
	if defaultTemplate, ok := defaultEmailTemplates[templateID]; ok {
		return &defaultTemplate, nil
	}
	return nil, fmt.Errorf("template not found: %s (locale: %s)", templateID, locale)
}

// SaveTemplate saves an email template to the database
func (s *EmailTemplateService) SaveTemplate(ctx context.Context, template *models.EmailTemplate) error {
	if template.TemplateID == "" || template.Locale == "" {
		return validationError("template id and locale are required")
	}
	return s.repo.SaveEmailTemplate(ctx, template)
}
