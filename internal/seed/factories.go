// Package seed provides helpers to create test and demo data for the
// application database. These helpers are intended for development and
// testing only.
package seed

import (
	"fmt"
	"strings"
	"time"

	"gymfix/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Builder constructs domain entities and persists them to the database.
// It is a thin helper used by seed presets and tests.
type Builder struct {
	db       *gorm.DB
	password string
}

// NewBuilder creates a Builder bound to the provided Gorm DB. Every seeded
// user shares the same bcrypt hash so login with the seed password works.
func NewBuilder(db *gorm.DB, password string) (*Builder, error) {
	gofakeit.Seed(time.Now().UnixNano())

	if password == "" {
		password = "password123"
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash seed password: %w", err)
	}
	return &Builder{db: db, password: string(hashed)}, nil
}

// CreateUser constructs and persists a sample user. Optional override
// functions may modify the generated user before saving.
func (b *Builder) CreateUser(overrides ...func(*models.User)) (*models.User, error) {
	user := &models.User{
		Username: gofakeit.Username() + fmt.Sprintf("%d", gofakeit.Number(100, 999)),
		Email:    gofakeit.Email(),
		Password: b.password,
	}
	for _, o := range overrides {
		o(user)
	}
	if err := b.db.Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// CreateFactory persists an equipment manufacturer.
func (b *Builder) CreateFactory(name string) (*models.Factory, error) {
	if name == "" {
		name = gofakeit.Company() + " Fitness"
	}
	factory := &models.Factory{Name: name}
	if err := b.db.Create(factory).Error; err != nil {
		return nil, err
	}
	return factory, nil
}

// CreateGym persists a gym belonging to the given factory.
func (b *Builder) CreateGym(factoryID uint, name string) (*models.Gym, error) {
	if name == "" {
		name = gofakeit.City() + " " + gofakeit.RandomString([]string{"Strength", "Fitness", "Gym", "Athletics", "Performance"})
	}
	addr := gofakeit.Address()
	gym := &models.Gym{
		Name:      name,
		Address:   fmt.Sprintf("%s, %s", addr.Street, addr.City),
		FactoryID: factoryID,
	}
	if err := b.db.Create(gym).Error; err != nil {
		return nil, err
	}
	return gym, nil
}

// AddFactoryMember links the user to a factory with the given role.
func (b *Builder) AddFactoryMember(factoryID, userID uint, role models.FactoryRole) error {
	return b.db.Create(&models.FactoryMembership{
		FactoryID: factoryID,
		UserID:    userID,
		Role:      role,
	}).Error
}

// AddGymMember links the user to a gym with the given role. Seeded
// memberships are always approved.
func (b *Builder) AddGymMember(gymID, userID uint, role models.GymRole) error {
	now := time.Now()
	return b.db.Create(&models.GymMembership{
		GymID:      gymID,
		UserID:     userID,
		Role:       role,
		ApprovedAt: &now,
	}).Error
}

// CreateEquipment persists a piece of equipment with a unique printed QR code.
func (b *Builder) CreateEquipment(factoryID, gymID uint) (*models.Equipment, error) {
	kind := gofakeit.RandomString([]string{
		"Treadmill", "Rowing Machine", "Leg Press", "Cable Crossover",
		"Smith Machine", "Elliptical", "Spin Bike", "Lat Pulldown",
		"Chest Press", "Squat Rack",
	})
	eq := &models.Equipment{
		Name:      kind,
		Model:     fmt.Sprintf("%s-%d", strings.ToUpper(gofakeit.LetterN(2)), gofakeit.Number(100, 999)),
		QRCode:    fmt.Sprintf("EQ-%s%d", strings.ToUpper(gofakeit.LetterN(4)), gofakeit.Number(1000, 9999)),
		FactoryID: factoryID,
		GymID:     gymID,
	}
	if err := b.db.Create(eq).Error; err != nil {
		return nil, err
	}
	return eq, nil
}

var faultDescriptions = []string{
	"Belt slips under load and squeaks at high speed.",
	"Display panel flickers and loses the workout program.",
	"Resistance motor grinds in the upper range.",
	"Seat adjustment pin no longer locks in place.",
	"Cable is frayed near the top pulley.",
	"Emergency stop button does not cut power.",
	"Frame wobbles noticeably during use.",
	"Handlebar grip is torn and the sensor reads erratically.",
}

// CreateTicket persists an open fault ticket with its creation event, the
// same shape the report endpoint produces.
func (b *Builder) CreateTicket(eq *models.Equipment, reporterID uint, overrides ...func(*models.Ticket)) (*models.Ticket, error) {
	ticket := &models.Ticket{
		EquipmentID:      eq.ID,
		GymID:            eq.GymID,
		FactoryID:        eq.FactoryID,
		Status:           models.TicketStatusOpen,
		Priority:         models.TicketPriority(gofakeit.RandomString([]string{"low", "medium", "high"})),
		Description:      gofakeit.RandomString(faultDescriptions),
		ReportedByUserID: reporterID,
	}
	for _, o := range overrides {
		o(ticket)
	}
	if err := b.db.Create(ticket).Error; err != nil {
		return nil, err
	}

	event := &models.TicketEvent{
		TicketID:    ticket.ID,
		ActorUserID: reporterID,
		Type:        models.TicketEventCreated,
	}
	if err := b.db.Create(event).Error; err != nil {
		return nil, err
	}
	return ticket, nil
}
