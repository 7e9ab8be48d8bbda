package models

import "time"

// Syndic est le profil gestionnaire rattaché 1:1 à un User.
type Syndic struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"unique;not null" json:"user_id"` // clé étrangère vers User
	Phone     string    `gorm:"unique;not null" json:"phone"`
	Immeuble  *Immeuble `gorm:"foreignKey:SyndicID" json:"immeuble,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
