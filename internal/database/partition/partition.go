// Package partition hands out per-guild database handles and serializes writers per guild.
package partition

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/uptrace/bun"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// ErrClosed is returned when a partition is requested after the manager was closed.
var ErrClosed = errors.New("partition manager closed")

// Opener opens the database backing a guild's partition.
// Implementations may return the same shared handle for every guild.
type Opener interface {
	Open(ctx context.Context, guildID uint64) (*bun.DB, error)
	// Shared reports whether every guild lives in one database.
	Shared() bool
}

// Partition is the isolated storage of a single guild.
type Partition struct {
	GuildID uint64
	db      *bun.DB
	mu      sync.Mutex
}

// DB returns the database handle of the partition.
func (p *Partition) DB() *bun.DB {
	return p.db
}

// Manager lazily opens partitions and keeps one writer lock per guild.
type Manager struct {
	opener     Opener
	partitions map[uint64]*Partition
	group      singleflight.Group
	logger     *zap.Logger
	mu         sync.RWMutex
	closed     bool
}

// NewManager creates a partition manager on top of the given opener.
func NewManager(opener Opener, logger *zap.Logger) *Manager {
	return &Manager{
		opener:     opener,
		partitions: make(map[uint64]*Partition),
		logger:     logger.Named("partition"),
	}
}

// Get returns the partition of a guild, opening it on first use.
// Concurrent first calls for the same guild share a single open.
func (m *Manager) Get(ctx context.Context, guildID uint64) (*Partition, error) {
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return nil, ErrClosed
	}
	p, ok := m.partitions[guildID]
	m.mu.RUnlock()

	if ok {
		return p, nil
	}

	v, err, _ := m.group.Do(strconv.FormatUint(guildID, 10), func() (any, error) {
		m.mu.RLock()
		existing, ok := m.partitions[guildID]
		m.mu.RUnlock()

		if ok {
			return existing, nil
		}

		db, err := m.opener.Open(ctx, guildID)
		if err != nil {
			return nil, fmt.Errorf("failed to open partition for guild %d: %w", guildID, err)
		}

		m.mu.Lock()
		defer m.mu.Unlock()

		if m.closed {
			if !m.opener.Shared() {
				_ = db.Close()
			}

			return nil, ErrClosed
		}

		p := &Partition{GuildID: guildID, db: db}
		m.partitions[guildID] = p

		m.logger.Debug("Opened guild partition", zap.Uint64("guildID", guildID))

		return p, nil
	})
	if err != nil {
		return nil, err
	}

	return v.(*Partition), nil
}

// Lock returns the partition of a guild with its writer lock held.
// The returned release function must be called exactly once.
func (m *Manager) Lock(ctx context.Context, guildID uint64) (*Partition, func(), error) {
	p, err := m.Get(ctx, guildID)
	if err != nil {
		return nil, nil, err
	}

	p.mu.Lock()

	return p, p.mu.Unlock, nil
}

// Close closes every opened partition. Shared databases are left to their owner.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true

	if m.opener.Shared() {
		return nil
	}

	var errs []error
	for guildID, p := range m.partitions {
		p.mu.Lock()
		if err := p.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("guild %d: %w", guildID, err))
		}
		p.mu.Unlock()
	}

	return errors.Join(errs...)
}
