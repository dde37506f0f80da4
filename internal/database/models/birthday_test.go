package models_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/robalyx/chopper/internal/database"
	"github.com/robalyx/chopper/internal/database/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	guildA = uint64(1001)
	guildB = uint64(2002)
)

func newRepository(t *testing.T) *database.Repository {
	t.Helper()

	client := database.NewMemoryClient(zap.NewNop())
	t.Cleanup(func() { _ = client.Close() })

	return client.Model()
}

func newRecord(guildID, userID uint64, tag, date string) *types.BirthdayRecord {
	return &types.BirthdayRecord{
		GuildID:      guildID,
		UserID:       userID,
		UserTag:      tag,
		BirthdayDate: date,
	}
}

func TestBirthday_InsertAndGet(t *testing.T) {
	ctx := t.Context()
	model := newRepository(t).Birthday()

	require.NoError(t, model.InsertRecord(ctx, newRecord(guildA, 42, "alice", "19-10-2004")))

	record, err := model.GetRecord(ctx, guildA, 42)
	require.NoError(t, err)
	assert.Equal(t, "alice", record.UserTag)
	assert.Equal(t, "19-10-2004", record.BirthdayDate)
	assert.False(t, record.Verified)
	assert.Equal(t, int64(1), record.Sequence)

	has, err := model.HasRecord(ctx, guildA, 42)
	require.NoError(t, err)
	assert.True(t, has)

	has, err = model.HasRecord(ctx, guildA, 43)
	require.NoError(t, err)
	assert.False(t, has)
}

func TestBirthday_GetMissing(t *testing.T) {
	model := newRepository(t).Birthday()

	_, err := model.GetRecord(t.Context(), guildA, 42)
	assert.ErrorIs(t, err, types.ErrRecordNotFound)
}

func TestBirthday_InsertDuplicate(t *testing.T) {
	ctx := t.Context()
	model := newRepository(t).Birthday()

	require.NoError(t, model.InsertRecord(ctx, newRecord(guildA, 42, "alice", "19-10-2004")))

	err := model.InsertRecord(ctx, newRecord(guildA, 42, "alice", "01-01-2000"))
	require.ErrorIs(t, err, types.ErrDuplicateKey)

	record, err := model.GetRecord(ctx, guildA, 42)
	require.NoError(t, err)
	assert.Equal(t, "19-10-2004", record.BirthdayDate, "duplicate insert must not overwrite")
}

func TestBirthday_ConcurrentInsertSingleWinner(t *testing.T) {
	ctx := t.Context()
	model := newRepository(t).Birthday()

	const attempts = 8

	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		successes  int
		duplicates int
	)

	for range attempts {
		wg.Add(1)
		go func() {
			defer wg.Done()

			err := model.InsertRecord(ctx, newRecord(guildA, 42, "alice", "19-10-2004"))

			mu.Lock()
			defer mu.Unlock()

			switch {
			case err == nil:
				successes++
			case errors.Is(err, types.ErrDuplicateKey):
				duplicates++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, attempts-1, duplicates)
}

func TestBirthday_ListInInsertionOrder(t *testing.T) {
	ctx := t.Context()
	model := newRepository(t).Birthday()

	users := []uint64{300, 100, 200}
	for _, userID := range users {
		require.NoError(t, model.InsertRecord(ctx, newRecord(guildA, userID, "user", "01-01-2000")))
	}

	// Deleting and re-adding moves a user to the end
	deleted, err := model.DeleteRecord(ctx, guildA, 300)
	require.NoError(t, err)
	require.True(t, deleted)
	require.NoError(t, model.InsertRecord(ctx, newRecord(guildA, 300, "user", "01-01-2000")))

	records, err := model.ListRecords(ctx, guildA)
	require.NoError(t, err)
	require.Len(t, records, 3)

	got := make([]uint64, 0, len(records))
	for _, record := range records {
		got = append(got, record.UserID)
	}
	assert.Equal(t, []uint64{100, 200, 300}, got)
}

func TestBirthday_ListEmptyGuild(t *testing.T) {
	records, err := newRepository(t).Birthday().ListRecords(t.Context(), guildA)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestBirthday_Update(t *testing.T) {
	ctx := t.Context()
	model := newRepository(t).Birthday()

	require.NoError(t, model.InsertRecord(ctx, newRecord(guildA, 42, "alice", "19-10-2004")))

	updated, err := model.UpdateRecord(ctx, guildA, 42, func(record *types.BirthdayRecord) error {
		record.BirthdayDate = "20-10-2004"
		record.Verified = true
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "20-10-2004", updated.BirthdayDate)

	record, err := model.GetRecord(ctx, guildA, 42)
	require.NoError(t, err)
	assert.Equal(t, "20-10-2004", record.BirthdayDate)
	assert.True(t, record.Verified)
	assert.Equal(t, int64(1), record.Sequence, "update keeps insertion order")
}

func TestBirthday_UpdateMissing(t *testing.T) {
	called := false

	_, err := newRepository(t).Birthday().UpdateRecord(t.Context(), guildA, 42,
		func(*types.BirthdayRecord) error {
			called = true
			return nil
		})
	require.ErrorIs(t, err, types.ErrRecordNotFound)
	assert.False(t, called)
}

func TestBirthday_UpdateAbortedByMutate(t *testing.T) {
	ctx := t.Context()
	model := newRepository(t).Birthday()
	errAbort := errors.New("abort")

	require.NoError(t, model.InsertRecord(ctx, newRecord(guildA, 42, "alice", "19-10-2004")))

	_, err := model.UpdateRecord(ctx, guildA, 42, func(record *types.BirthdayRecord) error {
		record.BirthdayDate = "01-01-1990"
		return errAbort
	})
	require.ErrorIs(t, err, errAbort)

	record, err := model.GetRecord(ctx, guildA, 42)
	require.NoError(t, err)
	assert.Equal(t, "19-10-2004", record.BirthdayDate)
}

func TestBirthday_DeleteIsIdempotent(t *testing.T) {
	ctx := t.Context()
	model := newRepository(t).Birthday()

	require.NoError(t, model.InsertRecord(ctx, newRecord(guildA, 42, "alice", "19-10-2004")))

	deleted, err := model.DeleteRecord(ctx, guildA, 42)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = model.DeleteRecord(ctx, guildA, 42)
	require.NoError(t, err)
	assert.False(t, deleted)

	// A deleted user can be registered again
	require.NoError(t, model.InsertRecord(ctx, newRecord(guildA, 42, "alice", "19-10-2004")))
}

func TestBirthday_GuildIsolation(t *testing.T) {
	ctx := t.Context()
	model := newRepository(t).Birthday()

	require.NoError(t, model.InsertRecord(ctx, newRecord(guildA, 42, "alice", "19-10-2004")))
	require.NoError(t, model.InsertRecord(ctx, newRecord(guildB, 42, "alice", "01-01-1990")))

	recordA, err := model.GetRecord(ctx, guildA, 42)
	require.NoError(t, err)
	recordB, err := model.GetRecord(ctx, guildB, 42)
	require.NoError(t, err)

	assert.Equal(t, "19-10-2004", recordA.BirthdayDate)
	assert.Equal(t, "01-01-1990", recordB.BirthdayDate)

	_, err = model.DeleteRecord(ctx, guildA, 42)
	require.NoError(t, err)

	has, err := model.HasRecord(ctx, guildB, 42)
	require.NoError(t, err)
	assert.True(t, has)
}
