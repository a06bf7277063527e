package utils

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mkowalczyk/prawnik-backend/pkg/models"
)

// LogCaseEvent inserts an audit record into case_events.
// The write is best-effort; a failed audit row never fails the operation.
func LogCaseEvent(
	ctx context.Context,
	db *gorm.DB,
	caseID, actorID uuid.UUID,
	action string,
	oldS, newS models.CaseStatus,
	reason string,
) {
	_ = db.WithContext(ctx).Create(&models.CaseEvent{
		CaseID:    caseID,
		ActorID:   actorID,
		Action:    action,
		OldStatus: oldS,
		NewStatus: newS,
		Reason:    reason,
		CreatedAt: time.Now(),
	}).Error
}
