package verification

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/robalyx/chopper/internal/database"
	"github.com/robalyx/chopper/internal/database/types"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var errPlatform = errors.New("platform unavailable")

// fakeClock fires timers only when advanced.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Time
	f       func()
	done    bool
	stopped bool
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := &fakeTimer{clock: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)

	return t
}

// Advance moves the clock forward and runs every timer that became due.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)

	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.done && !t.stopped && !t.at.After(c.now) {
			t.done = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()

	sort.SliceStable(due, func(i, j int) bool { return due[i].at.Before(due[j].at) })

	for _, t := range due {
		t.f()
	}
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()

	if t.done || t.stopped {
		return false
	}
	t.stopped = true

	return true
}

// fakePlatform records every external call.
type fakePlatform struct {
	mu sync.Mutex

	nextChannel    uint64
	created        []uint64
	deleted        []uint64
	prompts        []uint64
	directPrompts  []Key
	logs           []LogEntry
	logChannels    []uint64
	bans           []Key
	kicks          []Key
	moderatorRoles []string

	failCreate bool
	failDelete bool
	failSend   bool
	failDirect bool
	failBan    bool
	failKick   bool
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{nextChannel: 9000}
}

func (p *fakePlatform) CreatePrivateChannel(_ context.Context, _ uint64, _ Member, moderatorRole string) (uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.failCreate {
		return 0, errPlatform
	}

	p.nextChannel++
	p.created = append(p.created, p.nextChannel)
	p.moderatorRoles = append(p.moderatorRoles, moderatorRole)

	return p.nextChannel, nil
}

func (p *fakePlatform) DeleteChannel(_ context.Context, channelID uint64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.deleted = append(p.deleted, channelID)
	if p.failDelete {
		return errPlatform
	}

	return nil
}

func (p *fakePlatform) SendPrompt(_ context.Context, channelID uint64, _ Member) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.failSend {
		return errPlatform
	}
	p.prompts = append(p.prompts, channelID)

	return nil
}

func (p *fakePlatform) SendDirectPrompt(_ context.Context, member Member) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.failDirect {
		return errPlatform
	}
	p.directPrompts = append(p.directPrompts, member.Key())

	return nil
}

func (p *fakePlatform) SendLog(_ context.Context, channelID uint64, entry LogEntry) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.failSend {
		return errPlatform
	}
	p.logChannels = append(p.logChannels, channelID)
	p.logs = append(p.logs, entry)

	return nil
}

func (p *fakePlatform) Ban(_ context.Context, guildID, userID uint64, _ string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.bans = append(p.bans, Key{GuildID: guildID, UserID: userID})
	if p.failBan {
		return errPlatform
	}

	return nil
}

func (p *fakePlatform) Kick(_ context.Context, guildID, userID uint64, _ string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.kicks = append(p.kicks, Key{GuildID: guildID, UserID: userID})
	if p.failKick {
		return errPlatform
	}

	return nil
}

// snapshot returns copies of the recorded calls.
func (p *fakePlatform) snapshot() fakePlatform {
	p.mu.Lock()
	defer p.mu.Unlock()

	return fakePlatform{
		created:        append([]uint64(nil), p.created...),
		deleted:        append([]uint64(nil), p.deleted...),
		prompts:        append([]uint64(nil), p.prompts...),
		directPrompts:  append([]Key(nil), p.directPrompts...),
		logs:           append([]LogEntry(nil), p.logs...),
		logChannels:    append([]uint64(nil), p.logChannels...),
		bans:           append([]Key(nil), p.bans...),
		kicks:          append([]Key(nil), p.kicks...),
		moderatorRoles: append([]string(nil), p.moderatorRoles...),
	}
}

const (
	testGuild = uint64(100)
	testUser  = uint64(200)
)

var testSettings = Settings{
	Timeout:         300 * time.Second,
	Grace:           3 * time.Second,
	ToleranceMonths: 2,
	ModeratorRole:   "Moderador",
}

// harness wires a Manager to fakes and an in-memory record store.
type harness struct {
	manager  *Manager
	clock    *fakeClock
	platform *fakePlatform
	registry *MemoryRegistry
	store    *database.Repository
	client   database.Client
	once     sync.Once
}

func newHarness(t *testing.T, settings Settings) *harness {
	t.Helper()

	client := database.NewMemoryClient(zap.NewNop())
	clock := newFakeClock(time.Date(2025, time.January, 1, 12, 0, 0, 0, time.UTC))
	platform := newFakePlatform()
	registry := NewMemoryRegistry()

	h := &harness{
		clock:    clock,
		platform: platform,
		registry: registry,
		store:    client.Model(),
		client:   client,
	}

	h.manager = NewManager(settings, Dependencies{
		Records:     client.Model().Birthday(),
		LogChannels: client.Model().LogChannel(),
		Registry:    registry,
		Channels:    platform,
		Messenger:   platform,
		Members:     platform,
		Clock:       clock,
	}, zap.NewNop())

	t.Cleanup(h.close)

	return h
}

// advance moves time forward and waits for the follow-ups that fired.
func (h *harness) advance(d time.Duration) {
	h.clock.Advance(d)
	h.manager.scheduler.wait()
}

func (h *harness) close() {
	h.once.Do(func() {
		h.manager.Close()
		_ = h.client.Close()
	})
}

func (h *harness) hasRecord(t *testing.T, userID uint64) bool {
	t.Helper()

	exists, err := h.store.Birthday().HasRecord(t.Context(), testGuild, userID)
	require.NoError(t, err)

	return exists
}

func newMember(userID uint64) Member {
	return Member{GuildID: testGuild, UserID: userID, Tag: "member"}
}

// fakeStore is a record store without a database, for tests that check goroutine leaks.
type fakeStore struct {
	mu      sync.Mutex
	records map[Key]*types.BirthdayRecord
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: make(map[Key]*types.BirthdayRecord)}
}

func (s *fakeStore) HasRecord(_ context.Context, guildID, userID uint64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.records[Key{GuildID: guildID, UserID: userID}]

	return ok, nil
}

func (s *fakeStore) InsertRecord(_ context.Context, record *types.BirthdayRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := Key{GuildID: record.GuildID, UserID: record.UserID}
	if _, ok := s.records[key]; ok {
		return types.ErrDuplicateKey
	}
	s.records[key] = record

	return nil
}

func (s *fakeStore) GetLogChannel(context.Context, uint64) (uint64, error) {
	return 0, types.ErrLogChannelNotSet
}

// newStandaloneManager builds a Manager on fakes only.
func newStandaloneManager(settings Settings, clock Clock) (*Manager, *fakePlatform) {
	store := newFakeStore()
	platform := newFakePlatform()

	manager := NewManager(settings, Dependencies{
		Records:     store,
		LogChannels: store,
		Registry:    NewMemoryRegistry(),
		Channels:    platform,
		Messenger:   platform,
		Members:     platform,
		Clock:       clock,
	}, zap.NewNop())

	return manager, platform
}
