package model

import (
	"github.com/google/uuid"
)

// Conversion is one row of the job tracking table. A row is created when
// the job is received and updated exactly once when the pipeline finishes.
type Conversion struct {
	ID        uuid.UUID `gorm:"primaryKey;type:uuid"`
	Converted bool      `gorm:"column:converted"`
	ErrorMsg  string    `gorm:"column:error_msg"`
}

func (Conversion) TableName() string {
	return "data"
}

func NewConversionFromId(id uuid.UUID) *Conversion {
	return &Conversion{ID: id}
}
