package database

import "gymfix/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Factory{},
		&models.Gym{},
		&models.FactoryMembership{},
		&models.GymMembership{},
		&models.Equipment{},
		&models.Ticket{},
		&models.TicketEvent{},
		&models.VisitRequest{},
		&models.TicketConfirmation{},
		&models.Notification{},
	}
}
