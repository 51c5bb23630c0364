// internal/models/customer.go
package models

import "github.com/google/uuid"

type Customer struct {
	BaseModel
	Name         string     `json:"name" gorm:"size:255;not null"`
	Email        string     `json:"email" gorm:"uniqueIndex;size:255;not null"`
	Mobile       string     `json:"mobile" gorm:"size:50"`
	Address      string     `json:"address" gorm:"type:text"`
	OwnerGroupID *uuid.UUID `json:"owner_group_id" gorm:"type:uuid;index"`

	// Relationships
	Proposals []Proposal `json:"proposals,omitempty" gorm:"foreignKey:CustomerID"`
}
