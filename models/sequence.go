package models

import (
	"fmt"
	"time"

	"github.com/mmdatafocus/jewel_backend/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SequenceCounter hands out gap-free numbers per key inside the caller's transaction.
type SequenceCounter struct {
	SeqKey    string    `gorm:"primaryKey;size:64" json:"seq_key"`
	Value     int64     `gorm:"not null;default:0" json:"value"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func nextSequence(tx *gorm.DB, key string) (int64, error) {
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&SequenceCounter{SeqKey: key}).Error; err != nil {
		return 0, err
	}
	var counter SequenceCounter
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("seq_key = ?", key).First(&counter).Error; err != nil {
		return 0, err
	}
	next := counter.Value + 1
	if err := tx.Model(&SequenceCounter{}).Where("seq_key = ?", key).
		Update("value", next).Error; err != nil {
		return 0, err
	}
	return next, nil
}

// nextBarcode builds {metalPrefix}-{nameInitials}-{sequence}, e.g. G-SLJ-0007.
func nextBarcode(tx *gorm.DB, metal MetalType, partyName string) (string, error) {
	prefix, ok := metalPrefixes[metal]
	if !ok {
		return "", utils.ValidationError("unknown metal type %q", metal)
	}
	initials := utils.NameInitials(partyName)
	if initials == "" {
		initials = "X"
	}
	key := prefix + "-" + initials
	seq, err := nextSequence(tx, "barcode:"+key)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%04d", key, seq), nil
}
