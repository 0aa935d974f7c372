package models

import "time"

// Parameter is one externally mutable system parameter. Values are
// stored as text and parsed by the params store; absent keys fall back
// to config defaults.
type Parameter struct {
	Key       string    `gorm:"primaryKey;type:text"`
	Value     string    `gorm:"type:text;not null"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (Parameter) TableName() string {
	return "parameters"
}
