package verification

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/redis/rueidis"
	"go.uber.org/zap"
)

// leaseKeyPrefix namespaces session leases in Redis.
const leaseKeyPrefix = "chopper:session:"

// releaseScript deletes a lease only while it still holds our value.
var releaseScript = rueidis.NewLuaScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// lease is the value stored for a session held by this process.
type lease struct {
	Token    string    `json:"token"`
	Owner    string    `json:"owner"`
	GuildID  uint64    `json:"guildId"`
	UserID   uint64    `json:"userId"`
	Deadline time.Time `json:"deadline"`
}

// RedisRegistry is a Registry shared by every process using the same Redis.
// Sessions live in a local map while a Redis lease keeps other processes from
// registering the same key. Leases expire on their own so a crashed process
// cannot block a member forever.
type RedisRegistry struct {
	local  *MemoryRegistry
	client rueidis.Client
	owner  string
	ttl    time.Duration
	leases map[Key]string
	logger *zap.Logger
	mu     sync.Mutex
}

// NewRedisRegistry creates a registry whose leases expire after ttl.
func NewRedisRegistry(client rueidis.Client, owner string, ttl time.Duration, logger *zap.Logger) *RedisRegistry {
	return &RedisRegistry{
		local:  NewMemoryRegistry(),
		client: client,
		owner:  owner,
		ttl:    ttl,
		leases: make(map[Key]string),
		logger: logger.Named("session_registry"),
	}
}

// Register reserves the key locally, then takes the Redis lease.
func (r *RedisRegistry) Register(ctx context.Context, session *Session) error {
	key := session.Key()

	if err := r.local.Register(ctx, session); err != nil {
		return err
	}

	value, err := sonic.MarshalString(lease{
		Token:    uuid.NewString(),
		Owner:    r.owner,
		GuildID:  key.GuildID,
		UserID:   key.UserID,
		Deadline: session.Deadline(),
	})
	if err != nil {
		_ = r.local.Deregister(ctx, key)
		return fmt.Errorf("failed to encode session lease: %w", err)
	}

	cmd := r.client.B().Set().Key(leaseKey(key)).Value(value).Nx().PxMilliseconds(r.ttl.Milliseconds()).Build()
	if err := r.client.Do(ctx, cmd).Error(); err != nil {
		_ = r.local.Deregister(ctx, key)

		if rueidis.IsRedisNil(err) {
			return ErrAlreadyActive
		}

		return fmt.Errorf("failed to acquire session lease: %w", err)
	}

	r.mu.Lock()
	r.leases[key] = value
	r.mu.Unlock()

	return nil
}

// Deregister drops the local session and releases the lease if this process still holds it.
func (r *RedisRegistry) Deregister(ctx context.Context, key Key) error {
	_ = r.local.Deregister(ctx, key)

	r.mu.Lock()
	value, ok := r.leases[key]
	delete(r.leases, key)
	r.mu.Unlock()

	if !ok {
		return nil
	}

	if err := releaseScript.Exec(ctx, r.client, []string{leaseKey(key)}, []string{value}).Error(); err != nil {
		return fmt.Errorf("failed to release session lease: %w", err)
	}

	return nil
}

// Get returns the session of a key registered by this process.
func (r *RedisRegistry) Get(key Key) (*Session, bool) {
	return r.local.Get(key)
}

// Len returns the number of sessions registered by this process.
func (r *RedisRegistry) Len() int {
	return r.local.Len()
}

// Close releases every lease still held by this process.
func (r *RedisRegistry) Close(ctx context.Context) error {
	r.mu.Lock()
	keys := make([]Key, 0, len(r.leases))
	for key := range r.leases {
		keys = append(keys, key)
	}
	r.mu.Unlock()

	var errs []error
	for _, key := range keys {
		if err := r.Deregister(ctx, key); err != nil {
			errs = append(errs, err)
		}
	}

	if len(keys) > 0 {
		r.logger.Info("Released session leases", zap.Int("count", len(keys)))
	}

	return errors.Join(errs...)
}

func leaseKey(key Key) string {
	return leaseKeyPrefix + key.String()
}
