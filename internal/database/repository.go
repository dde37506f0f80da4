package database

import (
	"github.com/robalyx/chopper/internal/database/models"
	"github.com/robalyx/chopper/internal/database/partition"
	"go.uber.org/zap"
)

// Repository contains all the model operations.
type Repository struct {
	birthdays   *models.BirthdayModel
	logChannels *models.LogChannelModel
}

// NewRepository creates a new repository instance with all models.
func NewRepository(partitions *partition.Manager, logger *zap.Logger) *Repository {
	return &Repository{
		birthdays:   models.NewBirthday(partitions, logger),
		logChannels: models.NewLogChannel(partitions, logger),
	}
}

// Birthday returns the model for birthday records.
func (r *Repository) Birthday() *models.BirthdayModel {
	return r.birthdays
}

// LogChannel returns the model for log channel settings.
func (r *Repository) LogChannel() *models.LogChannelModel {
	return r.logChannels
}
