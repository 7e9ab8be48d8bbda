package models

import "time"

type Immeuble struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	ImmeubleName  string         `gorm:"not null" json:"immeuble_name"`
	Address       string         `gorm:"not null" json:"address"`
	SyndicID      uint           `gorm:"not null;index" json:"syndic_id"` // clé étrangère vers Syndic
	Proprietaires []Proprietaire `gorm:"foreignKey:ImmeubleID" json:"-"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}
