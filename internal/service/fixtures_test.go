package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"gymfix/internal/authz"
	"gymfix/internal/models"
	"gymfix/internal/notifications"
	"gymfix/internal/repository"
	"gymfix/internal/testutil"
)

// workshop wires the full service stack against an in-memory database with a
// ready-made tenant: one factory, one gym, one machine, and a cast of users
// covering every role.
type workshop struct {
	db *gorm.DB

	admin           models.User
	factoryOwner    models.User
	factoryApprover models.User
	factoryEmployee models.User
	gymOwner        models.User
	gymEmployee     models.User
	pendingMember   models.User
	outsider        models.User

	factory models.Factory
	gym     models.Gym
	machine models.Equipment

	tickets   *TicketService
	visits    *VisitService
	members   *MemberService
	tenants   *TenantService
	equipment *EquipmentService
	notices   *NotificationService
	users     *UserService
}

func newWorkshop(t *testing.T) *workshop {
	t.Helper()

	db := testutil.NewTestDB(t)
	w := &workshop{db: db}

	w.admin = w.createUser(t, "admin", true)
	w.factoryOwner = w.createUser(t, "factory_owner", false)
	w.factoryApprover = w.createUser(t, "factory_approver", false)
	w.factoryEmployee = w.createUser(t, "factory_tech", false)
	w.gymOwner = w.createUser(t, "gym_owner", false)
	w.gymEmployee = w.createUser(t, "gym_staff", false)
	w.pendingMember = w.createUser(t, "pending_staff", false)
	w.outsider = w.createUser(t, "outsider", false)

	w.factory = models.Factory{Name: "IronWorks Fitness Co"}
	require.NoError(t, db.Create(&w.factory).Error)
	w.gym = models.Gym{Name: "Downtown Strength", Address: "12 Main St", FactoryID: w.factory.ID}
	require.NoError(t, db.Create(&w.gym).Error)
	w.machine = models.Equipment{
		Name: "Treadmill T-900", Model: "T900", QRCode: "EQ-TREAD001",
		FactoryID: w.factory.ID, GymID: w.gym.ID,
	}
	require.NoError(t, db.Create(&w.machine).Error)

	w.addFactoryMember(t, w.factoryOwner.ID, models.FactoryRoleOwner)
	w.addFactoryMember(t, w.factoryApprover.ID, models.FactoryRoleApprover)
	w.addFactoryMember(t, w.factoryEmployee.ID, models.FactoryRoleEmployee)
	w.addGymMember(t, w.gymOwner.ID, models.GymRoleOwner, true)
	w.addGymMember(t, w.gymEmployee.ID, models.GymRoleEmployee, true)
	w.addGymMember(t, w.pendingMember.ID, models.GymRoleEmployee, false)

	userRepo := repository.NewUserRepository(db)
	tenantRepo := repository.NewTenantRepository(db)
	membershipRepo := repository.NewMembershipRepository(db)
	equipmentRepo := repository.NewEquipmentRepository(db)
	ticketRepo := repository.NewTicketRepository(db)
	visitRepo := repository.NewVisitRepository(db)
	confirmRepo := repository.NewConfirmationRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	resolver := authz.NewResolver(db)

	w.notices = NewNotificationService(notificationRepo, notifications.NewNotifier(nil), nil)
	w.tickets = NewTicketService(ticketRepo, equipmentRepo, membershipRepo, confirmRepo, resolver, w.notices)
	w.visits = NewVisitService(visitRepo, ticketRepo, membershipRepo, resolver, w.notices)
	w.members = NewMemberService(membershipRepo, tenantRepo, userRepo, resolver, w.notices)
	w.tenants = NewTenantService(tenantRepo, membershipRepo, resolver)
	w.equipment = NewEquipmentService(equipmentRepo, tenantRepo, resolver)
	w.users = NewUserService(userRepo)

	return w
}

func (w *workshop) createUser(t *testing.T, username string, admin bool) models.User {
	t.Helper()
	user := models.User{
		Username: username,
		Email:    username + "@example.com",
		Password: "hashed-not-relevant-here",
		IsAdmin:  admin,
	}
	require.NoError(t, w.db.Create(&user).Error)
	return user
}

func (w *workshop) addFactoryMember(t *testing.T, userID uint, role models.FactoryRole) {
	t.Helper()
	require.NoError(t, w.db.Create(&models.FactoryMembership{
		FactoryID: w.factory.ID, UserID: userID, Role: role,
	}).Error)
}

func (w *workshop) addGymMember(t *testing.T, userID uint, role models.GymRole, approved bool) {
	t.Helper()
	m := models.GymMembership{GymID: w.gym.ID, UserID: userID, Role: role}
	if approved {
		now := time.Now()
		m.ApprovedAt = &now
	}
	require.NoError(t, w.db.Create(&m).Error)
}

// reportFault files a ticket as the gym employee and returns it.
func (w *workshop) reportFault(t *testing.T) *models.Ticket {
	t.Helper()
	ticket, err := w.tickets.ReportFault(context.Background(), ReportFaultInput{
		ReporterID:  w.gymEmployee.ID,
		QRCode:      w.machine.QRCode,
		Description: "Belt slips under load",
		Priority:    models.TicketPriorityHigh,
	})
	require.NoError(t, err)
	return ticket
}

func (w *workshop) notificationsFor(t *testing.T, userID uint) []models.Notification {
	t.Helper()
	var rows []models.Notification
	require.NoError(t, w.db.Where("user_id = ?", userID).Order("id").Find(&rows).Error)
	return rows
}

func assertAppErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, code, appErr.Code)
}

func assertForbidden(t *testing.T, err error) { assertAppErrorCode(t, err, "FORBIDDEN") }
func assertConflict(t *testing.T, err error)  { assertAppErrorCode(t, err, "CONFLICT") }
