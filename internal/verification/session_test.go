package verification

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_DecideOnce(t *testing.T) {
	session := newSession(newMember(testUser), time.Now(), false)

	outcome, decided, err := session.decide(func() (Outcome, error) { return Verified, nil })
	require.NoError(t, err)
	assert.True(t, decided)
	assert.Equal(t, Verified, outcome)

	called := false
	outcome, decided, err = session.decide(func() (Outcome, error) {
		called = true
		return Kicked, nil
	})
	require.NoError(t, err)
	assert.False(t, decided)
	assert.False(t, called, "terminal sessions never run another decision")
	assert.Equal(t, Verified, outcome)
}

func TestSession_PendingOrErrorKeepsState(t *testing.T) {
	session := newSession(newMember(testUser), time.Now(), false)
	errStore := errors.New("store")

	_, decided, err := session.decide(func() (Outcome, error) { return Banned, errStore })
	require.ErrorIs(t, err, errStore)
	assert.False(t, decided)

	_, decided, err = session.decide(func() (Outcome, error) { return Pending, nil })
	require.NoError(t, err)
	assert.False(t, decided)
	assert.Equal(t, Pending, session.Outcome())
}

func TestSession_ConcurrentDecisionsHaveOneWinner(t *testing.T) {
	session := newSession(newMember(testUser), time.Now(), false)

	var (
		wg      sync.WaitGroup
		winners atomic.Int32
	)

	for i := range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()

			outcome := Verified
			if i%2 == 0 {
				outcome = Kicked
			}

			if _, decided, _ := session.decide(func() (Outcome, error) { return outcome, nil }); decided {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), winners.Load())
	assert.True(t, session.Outcome().Terminal())
}

func TestMemoryRegistry(t *testing.T) {
	ctx := t.Context()
	registry := NewMemoryRegistry()

	first := newSession(newMember(testUser), time.Now(), false)
	second := newSession(newMember(testUser), time.Now(), false)

	require.NoError(t, registry.Register(ctx, first))
	require.ErrorIs(t, registry.Register(ctx, second), ErrAlreadyActive)

	got, ok := registry.Get(first.Key())
	require.True(t, ok)
	assert.Same(t, first, got, "duplicate registration must not overwrite")

	require.NoError(t, registry.Deregister(ctx, first.Key()))
	require.NoError(t, registry.Deregister(ctx, first.Key()))
	assert.Equal(t, 0, registry.Len())

	require.NoError(t, registry.Register(ctx, second))
}

func TestOutcome_String(t *testing.T) {
	assert.Equal(t, "pending", Pending.String())
	assert.Equal(t, "verified", Verified.String())
	assert.Equal(t, "banned", Banned.String())
	assert.Equal(t, "kicked", Kicked.String())
	assert.False(t, Pending.Terminal())
	assert.True(t, Kicked.Terminal())
}
