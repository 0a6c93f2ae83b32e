package cache

import (
	"context"
	"fmt"
	"time"
)

const (
	UserKeyPrefix      = "user:%d"
	GymKeyPrefix       = "gym:%d"
	FactoryKeyPrefix   = "factory:%d"
	EquipmentQRPrefix  = "equipment:qr:%s"
	TicketKeyPrefix    = "ticket:%d"
)

const (
	UserTTL      = 5 * time.Minute
	GymTTL       = 10 * time.Minute
	FactoryTTL   = 10 * time.Minute
	EquipmentTTL = 30 * time.Minute
	TicketTTL    = 2 * time.Minute
)

func UserKey(userID uint) string {
	return fmt.Sprintf(UserKeyPrefix, userID)
}

func GymKey(gymID uint) string {
	return fmt.Sprintf(GymKeyPrefix, gymID)
}

func FactoryKey(factoryID uint) string {
	return fmt.Sprintf(FactoryKeyPrefix, factoryID)
}

func EquipmentQRKey(code string) string {
	return fmt.Sprintf(EquipmentQRPrefix, code)
}

func TicketKey(ticketID uint) string {
	return fmt.Sprintf(TicketKeyPrefix, ticketID)
}

func Invalidate(ctx context.Context, key string) {
	if client != nil {
		client.Del(ctx, key)
	}
}

func InvalidateUser(ctx context.Context, userID uint) {
	Invalidate(ctx, UserKey(userID))
}

func InvalidateGym(ctx context.Context, gymID uint) {
	Invalidate(ctx, GymKey(gymID))
}

func InvalidateTicket(ctx context.Context, ticketID uint) {
	Invalidate(ctx, TicketKey(ticketID))
}

func InvalidateEquipmentQR(ctx context.Context, code string) {
	Invalidate(ctx, EquipmentQRKey(code))
}
