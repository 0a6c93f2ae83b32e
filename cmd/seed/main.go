// Command main runs the database seeder for Gymfix.
package main

import (
	"flag"
	"log"

	"gymfix/internal/config"
	"gymfix/internal/database"
	"gymfix/internal/seed"
)

func main() {
	// Parse command line flags
	numFactories := flag.Int("factories", 3, "Number of factories to create")
	gymsPerFactory := flag.Int("gyms", 4, "Number of gyms per factory")
	equipmentPerGym := flag.Int("equipment", 8, "Number of machines per gym")
	staffPerGym := flag.Int("staff", 4, "Number of staff per gym (including the owner)")
	ticketsPerGym := flag.Int("tickets", 6, "Number of open tickets per gym")
	shouldClean := flag.Bool("clean", true, "Clean database before seeding")
	flag.Parse()

	log.Println("🌱 Database Seeder")
	log.Println("==================")
	log.Printf("Target: %d factories x %d gyms, %d machines each, clean=%v\n",
		*numFactories, *gymsPerFactory, *equipmentPerGym, *shouldClean)

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Connect to database
	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if err := seed.Seed(db, seed.Options{
		NumFactories:    *numFactories,
		GymsPerFactory:  *gymsPerFactory,
		EquipmentPerGym: *equipmentPerGym,
		StaffPerGym:     *staffPerGym,
		TicketsPerGym:   *ticketsPerGym,
		ShouldClean:     *shouldClean,
	}); err != nil {
		log.Fatalf("❌ Seeding failed: %v", err)
	}

	log.Println("✨ All done! Your database is now populated with test data.")
	log.Println("📧 All test users have the password: password123")
}
