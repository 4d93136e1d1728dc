package models

import (
	"time"

	"reluxrent/api/internal/utils"
)

// RequestMeta describes where a mutating call came from.
type RequestMeta struct {
	IP        string `bson:"ip,omitempty" json:"ip,omitempty"`
	UserAgent string `bson:"user_agent,omitempty" json:"user_agent,omitempty"`
}

// AuditEntry is an immutable record of a state change. Before and After hold JSON snapshots.
type AuditEntry struct {
	Base        `bson:",inline"`
	ActorID     utils.SixID `bson:"actor_id" json:"actor_id"`
	Action      string      `bson:"action" json:"action"`
	Resource    string      `bson:"resource" json:"resource"`
	ResourceID  utils.SixID `bson:"resource_id" json:"resource_id"`
	Message     string      `bson:"message" json:"message"`
	Before      string      `bson:"before,omitempty" json:"before,omitempty"`
	After       string      `bson:"after,omitempty" json:"after,omitempty"`
	RequestMeta RequestMeta `bson:"request_meta" json:"request_meta"`
	CreatedAt   time.Time   `bson:"created_at" json:"created_at"`
}
