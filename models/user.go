package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Role determines the full set of operations a user may perform
type Role string

const (
	RoleAdmin    Role = "ADMIN"
	RoleCustomer Role = "CUSTOMER"
)

// IsValid checks if the Role is a known value
func (r Role) IsValid() bool {
	return r == RoleAdmin || r == RoleCustomer
}

// User is the local profile of an identity provider account
type User struct {
	ID        string         `gorm:"primaryKey;size:36" json:"id"`
	Auth0ID   string         `gorm:"uniqueIndex;not null" json:"auth0_id"` // identity provider subject ('sub' claim)
	Name      string         `gorm:"not null" json:"name"`
	Email     string         `gorm:"uniqueIndex;not null" json:"email"`
	Role      Role           `gorm:"size:16;not null;default:'CUSTOMER'" json:"role"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name for the User model
func (User) TableName() string {
	return "users"
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.Role == "" {
		u.Role = RoleCustomer
	}
	return nil
}
