package models

import (
	"context"
	"encoding/json"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// History is the stored form of an AuditEvent.
type History struct {
	ID            int            `gorm:"primary_key" json:"id"`
	ActionType    string         `gorm:"size:40;not null;index" json:"action_type"`
	Description   string         `gorm:"type:text;not null" json:"description"`
	ReferenceID   int            `gorm:"index:idx_history_ref" json:"reference_id"`
	ReferenceType string         `gorm:"size:40;index:idx_history_ref" json:"reference_type"`
	UserId        int            `gorm:"index" json:"user_id"`
	UserName      string         `gorm:"size:100" json:"user_name"`
	IsGuest       bool           `gorm:"not null;default:false" json:"is_guest"`
	CorrelationId string         `gorm:"size:64" json:"correlation_id"`
	Payload       datatypes.JSON `json:"payload"`
	OccurredAt    time.Time      `json:"occurred_at"`
	CreatedAt     time.Time      `gorm:"autoCreateTime" json:"created_at"`
}

func historyFromEvent(event AuditEvent) (*History, error) {
	h := History{
		ActionType:    event.Action,
		Description:   event.Description,
		ReferenceID:   event.ReferenceId,
		ReferenceType: event.ReferenceType,
		UserId:        event.ActorId,
		UserName:      event.ActorName,
		IsGuest:       event.IsGuest,
		CorrelationId: event.CorrelationId,
		OccurredAt:    event.OccurredAt,
	}
	if len(event.Payload) > 0 {
		b, err := json.Marshal(event.Payload)
		if err != nil {
			return nil, err
		}
		h.Payload = datatypes.JSON(b)
	}
	return &h, nil
}

// SaveHistory writes one audit event outside any ledger transaction.
func SaveHistory(ctx context.Context, db *gorm.DB, event AuditEvent) error {
	h, err := historyFromEvent(event)
	if err != nil {
		return err
	}
	return db.WithContext(ctx).Create(h).Error
}

func ListHistory(ctx context.Context, db *gorm.DB, referenceType string, referenceId int) ([]*History, error) {
	var rows []*History
	err := db.WithContext(ctx).
		Where("reference_type = ? AND reference_id = ?", referenceType, referenceId).
		Order("id").Find(&rows).Error
	return rows, err
}
