package services

import (
	"strings"

	"reluxrent/api/internal/models"
)

// DefaultLocale is the fallback for missing translations.
const DefaultLocale = "en"

// LocalizedProperty holds the display text of a property in one locale.
type LocalizedProperty struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// ResolveTranslation picks each field from the requested locale, falling back per field
// to English and then to fallbackTitle. Empty and whitespace-only values count as absent.
func ResolveTranslation(rows []models.PropertyTranslation, locale, fallbackTitle string) LocalizedProperty {
	var requested, english *models.PropertyTranslation
	for i := range rows {
		switch {
		case strings.EqualFold(rows[i].Locale, locale) && requested == nil:
			requested = &rows[i]
		case strings.EqualFold(rows[i].Locale, DefaultLocale) && english == nil:
			english = &rows[i]
		}
	}

	pick := func(field func(*models.PropertyTranslation) string, last string) string {
		for _, row := range []*models.PropertyTranslation{requested, english} {
			if row == nil {
				continue
			}
			if v := strings.TrimSpace(field(row)); v != "" {
				return v
			}
		}
		return last
	}

	return LocalizedProperty{
		Title:       pick(func(t *models.PropertyTranslation) string { return t.Title }, fallbackTitle),
		Description: pick(func(t *models.PropertyTranslation) string { return t.Description }, ""),
	}
}
