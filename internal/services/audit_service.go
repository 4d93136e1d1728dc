package services

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"reluxrent/api/internal/models"
	"reluxrent/api/internal/repository"
	"reluxrent/api/internal/utils"
)

// AuditRecord describes one state change. Before and After are marshalled to JSON.
type AuditRecord struct {
	Actor      Actor
	Action     string
	Resource   string
	ResourceID utils.SixID
	Message    string
	Before     interface{}
	After      interface{}
}

// IAuditRecorder appends immutable audit entries. Record never fails the caller.
type IAuditRecorder interface {
	Record(ctx context.Context, rec AuditRecord)
}

type auditRecorder struct {
	repo repository.AuditRepository
	now  func() time.Time
}

// NewAuditRecorder stores audit entries through repo.
func NewAuditRecorder(repo repository.AuditRepository) IAuditRecorder {
	return &auditRecorder{repo: repo, now: time.Now}
}

func (r *auditRecorder) Record(ctx context.Context, rec AuditRecord) {
	entry := &models.AuditEntry{
		ActorID:     rec.Actor.UserID,
		Action:      rec.Action,
		Resource:    rec.Resource,
		ResourceID:  rec.ResourceID,
		Message:     rec.Message,
		Before:      snapshot(rec.Before),
		After:       snapshot(rec.After),
		RequestMeta: rec.Actor.meta(),
		CreatedAt:   r.now().UTC(),
	}
	if err := r.repo.InsertAuditEntry(context.WithoutCancel(ctx), entry); err != nil {
		utils.GetLogger().Error("Failed to record audit entry",
			zap.String("action", rec.Action),
			zap.String("resource", rec.Resource),
			zap.Stringer("resource_id", rec.ResourceID),
			zap.Error(err))
	}
}

func snapshot(v interface{}) string {
	if v == nil {
		return ""
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}
