package models

import "time"

// Roles applicatifs
const (
	RoleSyndic       = "syndic"
	RoleProprietaire = "proprietaire"
)

type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"not null;index" json:"name"`
	Email     string    `gorm:"unique;not null;index" json:"email"`
	Password  string    `gorm:"not null" json:"-"` // hashé
	Role      string    `gorm:"not null;index" json:"role"`
	Syndic    *Syndic   `gorm:"foreignKey:UserID" json:"syndic,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsSyndic reports whether the user carries a syndic profile.
func (u *User) IsSyndic() bool { return u.Role == RoleSyndic && u.Syndic != nil }
