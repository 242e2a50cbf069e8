package models

import (
	"time"
)

// StepioRecord is the storage row holding one user's document.
type StepioRecord struct {
	RecordID      uint64 `gorm:"primaryKey;autoIncrement"`
	UserID        string `gorm:"size:128;not null;uniqueIndex:idx_stepio_user"`
	RecordVersion uint64 `gorm:"not null;default:0"`
	Data          JSON
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// TableName overrides the table name for StepioRecord
func (StepioRecord) TableName() string {
	return "stepio_records"
}
