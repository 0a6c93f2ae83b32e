package models

import "time"

// Factory is the tenant that owns and tracks equipment across gyms.
type Factory struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:120;not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Gym is a location housing equipment, staffed by its own members.
type Gym struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:120;not null" json:"name"`
	Address   string    `gorm:"size:255" json:"address"`
	FactoryID uint      `gorm:"not null;index" json:"factory_id"`
	Factory   *Factory  `gorm:"foreignKey:FactoryID" json:"factory,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
