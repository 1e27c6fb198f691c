package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DesignFile references an uploaded drawing or specification. Rows are
// immutable once created.
type DesignFile struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	OrderID   string    `gorm:"size:36;not null;index" json:"order_id"`
	FileName  string    `gorm:"not null" json:"file_name"`
	FileURL   string    `gorm:"type:text;not null" json:"file_url"`
	FileType  string    `gorm:"size:128" json:"file_type"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName specifies the table name for the DesignFile model
func (DesignFile) TableName() string {
	return "design_files"
}

func (f *DesignFile) BeforeCreate(tx *gorm.DB) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	return nil
}
