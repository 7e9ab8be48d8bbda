package models

import "time"

// Proprietaire est rattaché 1:1 à un User (role=proprietaire) et à un Immeuble.
// Le triplet (immeuble, étage, numéro d'appartement) est unique: l'index
// composite porte l'invariant au niveau du stockage, la pré-vérification
// transactionnelle des handlers fournit le message d'erreur ciblé.
type Proprietaire struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	UserID            uint      `gorm:"not null;index" json:"user_id"` // clé étrangère vers User
	User              *User     `gorm:"foreignKey:UserID" json:"user,omitempty"`
	ImmeubleID        uint      `gorm:"not null;uniqueIndex:idx_appartement_immeuble" json:"immeuble_id"`
	Phone             string    `gorm:"unique;not null" json:"phone"`
	Etage             int       `gorm:"not null;uniqueIndex:idx_appartement_immeuble" json:"etage"` // peut être négatif (sous-sols)
	NumeroAppartement int       `gorm:"not null;uniqueIndex:idx_appartement_immeuble" json:"numero_appartement"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}
