package models

import (
	"strings"
	"time"
)

// User represents a guest or host account. Only the fields the booking flow reads are modelled.
type User struct {
	Base          `bson:",inline"`
	SoftDeletable `bson:",inline"`
	FirstName     string    `bson:"first_name" json:"first_name"`
	LastName      string    `bson:"last_name" json:"last_name"`
	Email         string    `bson:"email" json:"email"`
	Locale        string    `bson:"locale" json:"locale"`
	DeviceToken   string    `bson:"device_token,omitempty" json:"-"`
	IsVerified    bool      `bson:"is_verified" json:"is_verified"`
	IsBanned      bool      `bson:"is_banned" json:"is_banned"`
	IsAdmin       bool      `bson:"is_admin" json:"is_admin"`
	CreatedAt     time.Time `bson:"created_at" json:"created_at"`
}

// DisplayName joins first and last name.
func (u *User) DisplayName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}
