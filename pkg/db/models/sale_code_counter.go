package models

import "time"

// SaleCodeCounter holds the last sequence handed out per calendar day.
// Code generation locks this row FOR UPDATE so two concurrent sales can
// never draw the same number.
type SaleCodeCounter struct {
	Day       string    `gorm:"column:day;primaryKey;size:8"`
	LastSeq   int       `gorm:"column:last_seq;not null;default:0"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (SaleCodeCounter) TableName() string {
	return "sale_code_counters"
}
