package models

// Currency describes how amounts in a currency are displayed and converted.
// RateToBase is the number of base-currency units per one unit of this currency.
type Currency struct {
	Base          `bson:",inline"`
	Code          string  `bson:"code" json:"code"`
	Symbol        string  `bson:"symbol" json:"symbol"`
	DecimalPlaces int     `bson:"decimal_places" json:"decimal_places"`
	RateToBase    float64 `bson:"rate_to_base" json:"rate_to_base"`
}
