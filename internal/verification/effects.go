package verification

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// effectTimeout bounds a single external operation.
const effectTimeout = 15 * time.Second

// effects applies the one failure policy for external operations: a failure is
// logged as ErrExternalOperation and never changes a session's decision.
type effects struct {
	logger *zap.Logger
}

// bestEffort runs op and reports whether it succeeded.
func (e effects) bestEffort(ctx context.Context, op string, key Key, fn func(ctx context.Context) error) bool {
	ctx, cancel := context.WithTimeout(ctx, effectTimeout)
	defer cancel()

	if err := fn(ctx); err != nil {
		e.logger.Warn("External operation failed",
			zap.String("operation", op),
			zap.Uint64("guildID", key.GuildID),
			zap.Uint64("userID", key.UserID),
			zap.Error(fmt.Errorf("%w: %s: %w", ErrExternalOperation, op, err)))

		return false
	}

	return true
}
