package models

import "time"

// Equipment is a factory-owned machine assigned to a gym, identified on the
// floor by its QR code (e.g. "EQ-1234").
type Equipment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:120;not null" json:"name"`
	Model     string    `gorm:"size:120" json:"model"`
	QRCode    string    `gorm:"size:32;not null;uniqueIndex" json:"qr_code"`
	FactoryID uint      `gorm:"not null;index" json:"factory_id"`
	Factory   *Factory  `gorm:"foreignKey:FactoryID" json:"factory,omitempty"`
	GymID     uint      `gorm:"not null;index" json:"gym_id"`
	Gym       *Gym      `gorm:"foreignKey:GymID" json:"gym,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
