package services

import (
	"strconv"
	"strings"

	"reluxrent/api/internal/models"
)

// ConvertPrice converts an amount priced in the property's currency into the booking's
// currency using the snapshotted rates (units of base per unit of currency).
func ConvertPrice(price, propertyRate, bookingRate float64) float64 {
	if propertyRate <= 0 || bookingRate <= 0 {
		return price
	}
	return price * propertyRate / bookingRate
}

// FormatPrice renders an amount for display, e.g. "$1,234.50".
// A nil currency formats with two decimals and no symbol.
func FormatPrice(currency *models.Currency, amount float64) string {
	decimals := 2
	symbol := ""
	if currency != nil {
		decimals = currency.DecimalPlaces
		symbol = currency.Symbol
		if symbol == "" {
			symbol = currency.Code + " "
		}
	}
	if decimals < 0 {
		decimals = 0
	}

	neg := amount < 0
	if neg {
		amount = -amount
	}
	s := strconv.FormatFloat(roundTo(amount, decimals), 'f', decimals, 64)

	intPart, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, frac = s[:i], s[i:]
	}

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	b.WriteString(symbol)
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	b.WriteString(frac)
	return b.String()
}
