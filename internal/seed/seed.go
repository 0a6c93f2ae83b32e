// Package seed provides database seeding utilities for development and testing.
package seed

import (
	"fmt"
	"log"

	"gymfix/internal/models"

	"gorm.io/gorm"
)

// Options configuration for the seeder
type Options struct {
	NumFactories    int
	GymsPerFactory  int
	EquipmentPerGym int
	StaffPerGym     int
	TicketsPerGym   int
	Password        string
	ShouldClean     bool
}

// Seed populates the database with test data
func Seed(db *gorm.DB, opts Options) error {
	log.Printf("🌱 Starting database seeding with %d factories, %d gyms each...",
		opts.NumFactories, opts.GymsPerFactory)

	// Clear existing data to avoid conflicts if requested
	if opts.ShouldClean {
		if err := clearData(db); err != nil {
			log.Println("⚠️  Warning: Could not clear all existing data, but continuing anyway...")
		}
	}

	builder, err := NewBuilder(db, opts.Password)
	if err != nil {
		return err
	}

	for i := 0; i < opts.NumFactories; i++ {
		if err := seedFactory(builder, opts); err != nil {
			return fmt.Errorf("failed to seed factory %d: %w", i+1, err)
		}
	}

	log.Println("🎉 Database seeding completed successfully!")
	return nil
}

func seedFactory(b *Builder, opts Options) error {
	factory, err := b.CreateFactory("")
	if err != nil {
		return err
	}

	factoryOwner, err := b.CreateUser()
	if err != nil {
		return err
	}
	if err := b.AddFactoryMember(factory.ID, factoryOwner.ID, models.FactoryRoleOwner); err != nil {
		return err
	}

	approver, err := b.CreateUser()
	if err != nil {
		return err
	}
	if err := b.AddFactoryMember(factory.ID, approver.ID, models.FactoryRoleApprover); err != nil {
		return err
	}

	for g := 0; g < opts.GymsPerFactory; g++ {
		gym, err := b.CreateGym(factory.ID, "")
		if err != nil {
			return err
		}

		gymOwner, err := b.CreateUser()
		if err != nil {
			return err
		}
		if err := b.AddGymMember(gym.ID, gymOwner.ID, models.GymRoleOwner); err != nil {
			return err
		}

		staff := []*models.User{gymOwner}
		for s := 1; s < opts.StaffPerGym; s++ {
			employee, err := b.CreateUser()
			if err != nil {
				return err
			}
			if err := b.AddGymMember(gym.ID, employee.ID, models.GymRoleEmployee); err != nil {
				return err
			}
			staff = append(staff, employee)
		}

		equipment := make([]*models.Equipment, 0, opts.EquipmentPerGym)
		for e := 0; e < opts.EquipmentPerGym; e++ {
			eq, err := b.CreateEquipment(factory.ID, gym.ID)
			if err != nil {
				return err
			}
			equipment = append(equipment, eq)
		}

		for t := 0; t < opts.TicketsPerGym && len(equipment) > 0; t++ {
			reporter := staff[t%len(staff)]
			if _, err := b.CreateTicket(equipment[t%len(equipment)], reporter.ID); err != nil {
				return err
			}
		}

		log.Printf("✓ gym %q seeded with %d staff, %d machines", gym.Name, len(staff), len(equipment))
	}

	log.Printf("✓ factory %q seeded with %d gyms", factory.Name, opts.GymsPerFactory)
	return nil
}

// Demo seeds a single small factory/gym pair when the database is empty.
// Used by the development bootstrap so a fresh checkout has data to click on.
func Demo(db *gorm.DB) error {
	var count int64
	if err := db.Model(&models.Factory{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	return Seed(db, Options{
		NumFactories:    1,
		GymsPerFactory:  2,
		EquipmentPerGym: 5,
		StaffPerGym:     3,
		TicketsPerGym:   4,
	})
}

func clearData(db *gorm.DB) error {
	log.Println("🗑️  Clearing existing data...")
	if db.Dialector.Name() == "postgres" {
		sql := `TRUNCATE TABLE ticket_confirmations, visit_requests, ticket_events, tickets,
			notifications, equipment, gym_memberships, factory_memberships, gyms, factories, users
			RESTART IDENTITY CASCADE;`
		return db.Exec(sql).Error
	}

	tables := []interface{}{
		&models.TicketConfirmation{}, &models.VisitRequest{}, &models.TicketEvent{},
		&models.Ticket{}, &models.Notification{}, &models.Equipment{},
		&models.GymMembership{}, &models.FactoryMembership{},
		&models.Gym{}, &models.Factory{}, &models.User{},
	}
	for _, table := range tables {
		if err := db.Session(&gorm.Session{AllowGlobalUpdate: true}).Unscoped().Delete(table).Error; err != nil {
			return err
		}
	}
	return nil
}
