// internal/models/user.go
package models

import (
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type UserGroup struct {
	BaseModel
	Name      string        `json:"name" gorm:"size:100;not null;uniqueIndex"`
	GroupType UserGroupType `json:"group_type" gorm:"type:varchar(20);not null;default:'contractor'"`

	// Relationships
	Users []User `json:"users,omitempty" gorm:"foreignKey:GroupID"`
}

type User struct {
	BaseModel
	Name         string     `json:"name" gorm:"size:255;not null"`
	Email        string     `json:"email" gorm:"uniqueIndex;size:255;not null"`
	PasswordHash string     `json:"-" gorm:"size:255;not null"`
	GroupID      *uuid.UUID `json:"group_id" gorm:"type:uuid;index"`
	Enabled      bool       `json:"enabled" gorm:"default:true"`
	LastLoginAt  *time.Time `json:"last_login_at"`

	// Relationships
	Group *UserGroup `json:"group,omitempty" gorm:"foreignKey:GroupID"`
}

func (u *User) SetPassword(password string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hashedPassword)
	return nil
}

func (u *User) CheckPassword(password string) error {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password))
}

func (u *User) IsAdmin() bool {
	return u.Group != nil && u.Group.GroupType == UserGroupTypeAdmin
}
