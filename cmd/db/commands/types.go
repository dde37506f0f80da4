package commands

import (
	"github.com/robalyx/chopper/internal/database"
	"go.uber.org/zap"
)

// CLIDependencies holds the common dependencies needed by CLI commands.
type CLIDependencies struct {
	DB     database.Client
	Logger *zap.Logger
}
