package migrations

import (
	"context"
	"fmt"

	"github.com/robalyx/chopper/internal/database/types"
	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		models := []any{
			(*types.BirthdayRecord)(nil),
			(*types.LogChannel)(nil),
		}

		for _, model := range models {
			_, err := db.NewCreateTable().
				Model(model).
				IfNotExists().
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("failed to create table for %T: %w", model, err)
			}
		}

		_, err := db.NewCreateIndex().
			Model((*types.BirthdayRecord)(nil)).
			Index("idx_birthdays_guild_sequence").
			Column("guild_id", "sequence").
			IfNotExists().
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to create birthday sequence index: %w", err)
		}

		return nil
	}, func(ctx context.Context, db *bun.DB) error {
		models := []any{
			(*types.LogChannel)(nil),
			(*types.BirthdayRecord)(nil),
		}

		for _, model := range models {
			_, err := db.NewDropTable().
				Model(model).
				IfExists().
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("failed to drop table for %T: %w", model, err)
			}
		}

		return nil
	})
}
