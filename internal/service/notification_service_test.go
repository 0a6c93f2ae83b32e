package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gymfix/internal/models"
	"gymfix/internal/notifications"
	"gymfix/internal/repository"
)

type stubPresence map[uint]bool

func (s stubPresence) IsOnline(userID uint) bool { return s[userID] }

func TestNotifyPersistsAndLists(t *testing.T) {
	w := newWorkshop(t)
	ctx := context.Background()

	err := w.notices.Notify(ctx, w.gymOwner.ID, models.NotificationStatusChanged,
		"Ticket #1 is now in_review", "triage started", map[string]interface{}{"ticket_id": 1})
	require.NoError(t, err)

	rows, total, err := w.notices.List(ctx, w.gymOwner.ID, false, 20, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, rows, 1)
	assert.Equal(t, models.NotificationStatusChanged, rows[0].Type)
	assert.Equal(t, "triage started", rows[0].Body)
	assert.NotEmpty(t, rows[0].Data)
	assert.Nil(t, rows[0].ReadAt)
}

func TestNotifySkipsPushForOfflineUsers(t *testing.T) {
	w := newWorkshop(t)
	ctx := context.Background()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = rdb.Close() }()

	sub := rdb.Subscribe(ctx, notifications.UserChannel(w.gymOwner.ID))
	defer func() { _ = sub.Close() }()
	_, err = sub.Receive(ctx)
	require.NoError(t, err)

	repo := repository.NewNotificationRepository(w.db)
	presence := stubPresence{}
	svc := NewNotificationService(repo, notifications.NewNotifier(rdb), presence)

	require.NoError(t, svc.Notify(ctx, w.gymOwner.ID, models.NotificationTicketCreated, "belt fault", "", nil))

	select {
	case msg := <-sub.Channel():
		t.Fatalf("unexpected push for a user with no connection: %s", msg.Payload)
	case <-time.After(100 * time.Millisecond):
	}

	// the row still lands; the user sees it on their next fetch
	assert.Len(t, w.notificationsFor(t, w.gymOwner.ID), 1)

	presence[w.gymOwner.ID] = true
	require.NoError(t, svc.Notify(ctx, w.gymOwner.ID, models.NotificationTicketCreated, "motor fault", "", nil))

	select {
	case msg := <-sub.Channel():
		assert.Contains(t, msg.Payload, "motor fault")
	case <-time.After(time.Second):
		t.Fatal("expected a push once the user is online")
	}
}

func TestNotifyManySkipsActorAndDuplicates(t *testing.T) {
	w := newWorkshop(t)
	ctx := context.Background()

	ids := []uint{w.gymOwner.ID, w.gymEmployee.ID, w.gymEmployee.ID, w.gymOwner.ID}
	w.notices.NotifyMany(ctx, ids, w.gymOwner.ID, models.NotificationTicketComment, "ping", "", nil)

	assert.Empty(t, w.notificationsFor(t, w.gymOwner.ID))
	assert.Len(t, w.notificationsFor(t, w.gymEmployee.ID), 1)
}

func TestMarkReadFlow(t *testing.T) {
	w := newWorkshop(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, w.notices.Notify(ctx, w.gymOwner.ID, models.NotificationTicketCreated, "t", "", nil))
	}

	count, err := w.notices.CountUnread(ctx, w.gymOwner.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 3, count)

	rows, _, err := w.notices.List(ctx, w.gymOwner.ID, true, 20, 0)
	require.NoError(t, err)
	require.NoError(t, w.notices.MarkRead(ctx, w.gymOwner.ID, rows[0].ID))

	count, err = w.notices.CountUnread(ctx, w.gymOwner.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)

	// rereading the same row is a not found, not a silent noop
	err = w.notices.MarkRead(ctx, w.gymOwner.ID, rows[0].ID)
	assertAppErrorCode(t, err, "NOT_FOUND")

	// one user cannot touch another user's rows
	err = w.notices.MarkRead(ctx, w.gymEmployee.ID, rows[1].ID)
	assertAppErrorCode(t, err, "NOT_FOUND")

	require.NoError(t, w.notices.MarkAllRead(ctx, w.gymOwner.ID))
	count, err = w.notices.CountUnread(ctx, w.gymOwner.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
}
