package models

import "time"

// GymRole defines a member's role within a gym.
type GymRole string

const (
	// GymRoleOwner is the gym owner role.
	GymRoleOwner GymRole = "owner"
	// GymRoleEmployee is the default gym staff role.
	GymRoleEmployee GymRole = "employee"
)

// FactoryRole defines a member's role within a factory.
type FactoryRole string

const (
	// FactoryRoleOwner is the factory owner role.
	FactoryRoleOwner FactoryRole = "owner"
	// FactoryRoleApprover may approve or reject visit requests.
	FactoryRoleApprover FactoryRole = "approver"
	// FactoryRoleEmployee is the default factory staff role.
	FactoryRoleEmployee FactoryRole = "employee"
)

// GymMembership maps users to gyms and tracks role. A membership is active
// only once ApprovedAt is set; revocation deletes the row.
type GymMembership struct {
	GymID      uint       `gorm:"primaryKey;autoIncrement:false" json:"gym_id"`
	Gym        *Gym       `gorm:"foreignKey:GymID" json:"gym,omitempty"`
	UserID     uint       `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	User       *User      `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Role       GymRole    `gorm:"type:varchar(20);not null;default:'employee'" json:"role"`
	ApprovedAt *time.Time `json:"approved_at"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// Active reports whether the membership has been approved.
func (m GymMembership) Active() bool {
	return m.ApprovedAt != nil
}

// FactoryMembership maps users to factories and tracks role.
type FactoryMembership struct {
	FactoryID uint        `gorm:"primaryKey;autoIncrement:false" json:"factory_id"`
	Factory   *Factory    `gorm:"foreignKey:FactoryID" json:"factory,omitempty"`
	UserID    uint        `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	User      *User       `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Role      FactoryRole `gorm:"type:varchar(20);not null;default:'employee'" json:"role"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}
