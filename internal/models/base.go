package models

import (
	"time"

	"reluxrent/api/internal/utils"
)

type IBase interface {
	GenIDIfEmpty()
	GenID()
	SetID(id utils.SixID)
}

type Base struct {
	ID utils.SixID `bson:"_id,omitempty" json:"id,omitempty"`
}

func (m *Base) GenIDIfEmpty() {
	if m.ID.IsZero() {
		m.GenID()
	}
}

func (m *Base) GenID() {
	m.ID = utils.NewSixID()
}

func (m *Base) SetID(id utils.SixID) {
	m.ID = id
}

func NewBase() Base {
	return Base{
		ID: utils.NewSixID(),
	}
}

// SoftDeletable marks records that are hidden by setting deleted_at rather than removed.
// Repository reads filter on deleted_at being null.
type SoftDeletable struct {
	DeletedAt *time.Time `bson:"deleted_at" json:"deleted_at,omitempty"`
}

// IsDeleted reports whether the record has been soft-deleted.
func (s SoftDeletable) IsDeleted() bool {
	return s.DeletedAt != nil
}
