package notifications

import (
	"context"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	staffOnlineSetKey   = "gymfix:staff:online"
	staffLastSeenPrefix = "gymfix:staff:last_seen:"
	staffLastSeenTTL    = 90 * time.Second
	staffOfflineGrace   = 5 * time.Second
	staleSweepInterval  = 60 * time.Second
)

// PresenceHooks are invoked when a staff account transitions between online
// and offline. Both funcs may be nil.
type PresenceHooks struct {
	StaffOnline  func(userID uint)
	StaffOffline func(userID uint)
}

// PresenceConfig overrides the tracker defaults. Zero values keep the
// defaults.
type PresenceConfig struct {
	OnlineSetKey   string
	LastSeenPrefix string
	LastSeenTTL    time.Duration
	OfflineGrace   time.Duration
	SweepInterval  time.Duration
	Hooks          PresenceHooks
}

// PresenceTracker records which staff accounts hold live websocket
// connections. Local counts answer the fast path on this instance; Redis
// carries a last-seen key per user so presence survives across instances.
// A short grace window keeps page reloads from flapping offline/online.
type PresenceTracker struct {
	rdb *redis.Client

	mu               sync.RWMutex
	localConns       map[uint]int
	pendingOffline   map[uint]*time.Timer
	announcedOffline map[uint]bool

	onlineKey     string
	lastSeenNS    string
	lastSeenTTL   time.Duration
	offlineGrace  time.Duration
	sweepInterval time.Duration

	hooks PresenceHooks

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewPresenceTracker builds a tracker. With a Redis client it also starts a
// background sweep that clears users whose last-seen key expired, so a crashed
// instance cannot leave its staff marked online forever.
func NewPresenceTracker(rdb *redis.Client, cfg PresenceConfig) *PresenceTracker {
	p := &PresenceTracker{
		rdb:              rdb,
		localConns:       make(map[uint]int),
		pendingOffline:   make(map[uint]*time.Timer),
		announcedOffline: make(map[uint]bool),
		onlineKey:        staffOnlineSetKey,
		lastSeenNS:       staffLastSeenPrefix,
		lastSeenTTL:      staffLastSeenTTL,
		offlineGrace:     staffOfflineGrace,
		sweepInterval:    staleSweepInterval,
		hooks:            cfg.Hooks,
		stopCh:           make(chan struct{}),
	}
	if cfg.OnlineSetKey != "" {
		p.onlineKey = cfg.OnlineSetKey
	}
	if cfg.LastSeenPrefix != "" {
		p.lastSeenNS = cfg.LastSeenPrefix
	}
	if cfg.LastSeenTTL > 0 {
		p.lastSeenTTL = cfg.LastSeenTTL
	}
	if cfg.OfflineGrace > 0 {
		p.offlineGrace = cfg.OfflineGrace
	}
	if cfg.SweepInterval > 0 {
		p.sweepInterval = cfg.SweepInterval
	}

	if p.rdb != nil && p.sweepInterval > 0 {
		go p.sweepLoop()
	}
	return p
}

func (p *PresenceTracker) SetHooks(h PresenceHooks) {
	p.mu.Lock()
	p.hooks = h
	p.mu.Unlock()
}

func (p *PresenceTracker) SetOfflineGrace(d time.Duration) {
	if d <= 0 {
		return
	}
	p.mu.Lock()
	p.offlineGrace = d
	p.mu.Unlock()
}

// Stop halts the sweep loop and cancels pending offline timers.
func (p *PresenceTracker) Stop() {
	p.stopOnce.Do(func() {
		close(p.stopCh)
		p.mu.Lock()
		for userID, timer := range p.pendingOffline {
			if timer != nil {
				timer.Stop()
			}
			delete(p.pendingOffline, userID)
		}
		p.mu.Unlock()
	})
}

// ConnectionOpened records a new websocket for the user and refreshes the
// Redis presence keys. Fires the online hook on the offline-to-online edge.
func (p *PresenceTracker) ConnectionOpened(ctx context.Context, userID uint) {
	wasOnline := p.IsOnline(ctx, userID)

	p.mu.Lock()
	if t, ok := p.pendingOffline[userID]; ok {
		t.Stop()
		delete(p.pendingOffline, userID)
	}
	p.localConns[userID]++
	p.announcedOffline[userID] = false
	p.mu.Unlock()

	p.MarkActive(ctx, userID)
	if !wasOnline {
		p.announceOnline(userID)
	}
}

// ConnectionClosed drops one websocket for the user. When it was the last
// one, offline is announced only after the grace window passes without a
// reconnect.
func (p *PresenceTracker) ConnectionClosed(ctx context.Context, userID uint) {
	p.mu.Lock()
	if n, ok := p.localConns[userID]; ok {
		n--
		if n > 0 {
			p.localConns[userID] = n
			p.mu.Unlock()
			return
		}
		delete(p.localConns, userID)
	}

	if t, ok := p.pendingOffline[userID]; ok {
		t.Stop()
	}
	p.pendingOffline[userID] = time.AfterFunc(p.offlineGrace, func() {
		p.confirmOffline(context.Background(), userID)
	})
	p.mu.Unlock()
}

// MarkActive refreshes the user's Redis presence keys. Called on open and on
// every inbound websocket frame.
func (p *PresenceTracker) MarkActive(ctx context.Context, userID uint) {
	if p.rdb == nil {
		return
	}
	uid := strconv.FormatUint(uint64(userID), 10)
	_, err := p.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, p.onlineKey, uid)
		pipe.SetEx(ctx, p.lastSeenKey(userID), strconv.FormatInt(time.Now().Unix(), 10), p.lastSeenTTL)
		return nil
	})
	if err != nil {
		log.Printf("staff presence refresh failed for user %d: %v", userID, err)
	}
}

// IsOnline reports whether the user can receive a live push, here or on
// another instance.
func (p *PresenceTracker) IsOnline(ctx context.Context, userID uint) bool {
	p.mu.RLock()
	local := p.localConns[userID] > 0
	p.mu.RUnlock()
	if local {
		return true
	}
	if p.rdb == nil {
		return false
	}
	exists, err := p.rdb.Exists(ctx, p.lastSeenKey(userID)).Result()
	return err == nil && exists > 0
}

// OnlineSet returns the IDs of all currently online staff as a set. Stale
// entries whose last-seen key expired are pruned from Redis on the way
// through; local connections are always included.
func (p *PresenceTracker) OnlineSet(ctx context.Context) map[uint]struct{} {
	online := make(map[uint]struct{})
	for _, userID := range p.localUserIDs() {
		online[userID] = struct{}{}
	}
	if p.rdb == nil {
		return online
	}

	members, err := p.rdb.SMembers(ctx, p.onlineKey).Result()
	if err != nil {
		return online
	}
	for _, raw := range members {
		id64, parseErr := strconv.ParseUint(raw, 10, 32)
		if parseErr != nil {
			continue
		}
		userID := uint(id64)
		if _, ok := online[userID]; ok {
			continue
		}
		exists, existsErr := p.rdb.Exists(ctx, p.lastSeenKey(userID)).Result()
		if existsErr != nil {
			continue
		}
		if exists == 0 {
			_ = p.rdb.SRem(ctx, p.onlineKey, raw).Err()
			continue
		}
		online[userID] = struct{}{}
	}
	return online
}

// sweepOnce clears online-set members whose last-seen key expired and
// announces them offline unless they still hold a local connection.
func (p *PresenceTracker) sweepOnce(ctx context.Context) {
	if p.rdb == nil {
		return
	}
	members, err := p.rdb.SMembers(ctx, p.onlineKey).Result()
	if err != nil {
		return
	}
	for _, raw := range members {
		id64, parseErr := strconv.ParseUint(raw, 10, 32)
		if parseErr != nil {
			continue
		}
		userID := uint(id64)
		exists, existsErr := p.rdb.Exists(ctx, p.lastSeenKey(userID)).Result()
		if existsErr != nil || exists > 0 {
			continue
		}
		_ = p.rdb.SRem(ctx, p.onlineKey, raw).Err()

		p.mu.RLock()
		hasLocal := p.localConns[userID] > 0
		p.mu.RUnlock()
		if !hasLocal {
			p.announceOffline(userID)
		}
	}
}

func (p *PresenceTracker) sweepLoop() {
	ticker := time.NewTicker(p.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.sweepOnce(context.Background())
		}
	}
}

func (p *PresenceTracker) confirmOffline(ctx context.Context, userID uint) {
	p.mu.Lock()
	if p.localConns[userID] > 0 {
		delete(p.pendingOffline, userID)
		p.mu.Unlock()
		return
	}
	delete(p.pendingOffline, userID)
	p.mu.Unlock()

	if p.rdb != nil {
		exists, err := p.rdb.Exists(ctx, p.lastSeenKey(userID)).Result()
		if err == nil && exists > 0 {
			// Another instance still sees the user. Keep them online.
			return
		}
		_ = p.rdb.SRem(ctx, p.onlineKey, strconv.FormatUint(uint64(userID), 10)).Err()
	}
	p.announceOffline(userID)
}

func (p *PresenceTracker) announceOnline(userID uint) {
	p.mu.Lock()
	p.announcedOffline[userID] = false
	hook := p.hooks.StaffOnline
	p.mu.Unlock()
	if hook != nil {
		hook(userID)
	}
}

func (p *PresenceTracker) announceOffline(userID uint) {
	p.mu.Lock()
	if p.announcedOffline[userID] {
		p.mu.Unlock()
		return
	}
	p.announcedOffline[userID] = true
	hook := p.hooks.StaffOffline
	p.mu.Unlock()
	if hook != nil {
		hook(userID)
	}
}

func (p *PresenceTracker) localUserIDs() []uint {
	p.mu.RLock()
	defer p.mu.RUnlock()
	ids := make([]uint, 0, len(p.localConns))
	for userID, count := range p.localConns {
		if count > 0 {
			ids = append(ids, userID)
		}
	}
	return ids
}

func (p *PresenceTracker) lastSeenKey(userID uint) string {
	return p.lastSeenNS + strconv.FormatUint(uint64(userID), 10)
}
