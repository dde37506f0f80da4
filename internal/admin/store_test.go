package admin_test

import (
	"context"

	"github.com/robalyx/chopper/internal/database/types"
)

// countingStore counts storage calls and stores nothing.
type countingStore struct {
	calls int
}

func (s *countingStore) GetRecord(context.Context, uint64, uint64) (*types.BirthdayRecord, error) {
	s.calls++
	return nil, types.ErrRecordNotFound
}

func (s *countingStore) InsertRecord(context.Context, *types.BirthdayRecord) error {
	s.calls++
	return nil
}

func (s *countingStore) UpdateRecord(
	context.Context, uint64, uint64, func(*types.BirthdayRecord) error,
) (*types.BirthdayRecord, error) {
	s.calls++
	return nil, types.ErrRecordNotFound
}

func (s *countingStore) DeleteRecord(context.Context, uint64, uint64) (bool, error) {
	s.calls++
	return false, nil
}

func (s *countingStore) ListRecords(context.Context, uint64) ([]*types.BirthdayRecord, error) {
	s.calls++
	return nil, nil
}
