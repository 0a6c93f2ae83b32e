// Package main provides master-admin management utilities for Gymfix.
package main

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"gymfix/internal/config"
	"gymfix/internal/database"
	"gymfix/internal/models"

	"gorm.io/gorm"
)

func usage() {
	fmt.Println("Manage master admin accounts for the Gymfix platform.")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  go run ./cmd/admin/main.go promote <user_id|email>   - Grant master admin")
	fmt.Println("  go run ./cmd/admin/main.go demote <user_id|email>    - Revoke master admin")
	fmt.Println("  go run ./cmd/admin/main.go list-admins               - List master admins")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	switch os.Args[1] {
	case "promote":
		if len(os.Args) < 3 {
			usage()
			os.Exit(1)
		}
		setMasterAdmin(db, os.Args[2], true)

	case "demote":
		if len(os.Args) < 3 {
			usage()
			os.Exit(1)
		}
		setMasterAdmin(db, os.Args[2], false)

	case "list-admins":
		listAdmins(db)

	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		usage()
		os.Exit(1)
	}
}

// findUser resolves an id or, when the argument contains an @, an email.
func findUser(db *gorm.DB, ref string) (*models.User, error) {
	var user models.User
	q := db
	if strings.Contains(ref, "@") {
		q = q.Where("email = ?", ref)
	} else {
		q = q.Where("id = ?", ref)
	}
	if err := q.First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func setMasterAdmin(db *gorm.DB, ref string, grant bool) {
	user, err := findUser(db, ref)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			fmt.Printf("User %q not found\n", ref)
			os.Exit(1)
		}
		log.Fatalf("Database error: %v", err)
	}

	if user.IsAdmin == grant {
		if grant {
			fmt.Printf("User %s (ID: %d) is already a master admin\n", user.Username, user.ID)
		} else {
			fmt.Printf("User %s (ID: %d) is not a master admin\n", user.Username, user.ID)
		}
		return
	}

	user.IsAdmin = grant
	if err := db.Save(user).Error; err != nil {
		log.Fatalf("Failed to update user: %v", err)
	}

	if grant {
		fmt.Printf("Granted master admin to %s (ID: %d)\n", user.Username, user.ID)
	} else {
		fmt.Printf("Revoked master admin from %s (ID: %d)\n", user.Username, user.ID)
	}
}

func listAdmins(db *gorm.DB) {
	var admins []models.User
	if err := db.Where("is_admin = ?", true).Find(&admins).Error; err != nil {
		log.Fatalf("Failed to fetch admins: %v", err)
	}

	if len(admins) == 0 {
		fmt.Println("No master admins found")
		return
	}

	fmt.Println("Master admins:")
	for _, admin := range admins {
		fmt.Printf("  ID: %d | Username: %s | Email: %s\n", admin.ID, admin.Username, admin.Email)
	}
}
