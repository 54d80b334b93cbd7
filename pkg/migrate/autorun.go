package migrate

import (
	"context"
	"database/sql"
	"fmt"

	"gorm.io/gorm"

	"github.com/thalibox/marketplace-backend/pkg/config"
	"github.com/thalibox/marketplace-backend/pkg/logger"
)

type gormSource interface {
	DB() *gorm.DB
}

// MaybeRunDev brings the schema up to date on boot when running in dev with
// auto-migrate on. Other environments run cmd/migrate as a deploy step.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client gormSource) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}
	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("dev migrations: %w", err)
	}
	return upEmbedded(logg.WithField(ctx, "env", cfg.App.Env), logg, sqlDB)
}

func upEmbedded(ctx context.Context, logg *logger.Logger, sqlDB *sql.DB) error {
	before, err := CurrentVersion(ctx, sqlDB)
	if err != nil {
		return err
	}
	if err := Run(ctx, sqlDB, "", "up"); err != nil {
		return fmt.Errorf("dev migrations: %w", err)
	}
	after, err := CurrentVersion(ctx, sqlDB)
	if err != nil {
		return err
	}

	ctx = logg.WithFields(ctx, map[string]any{"from_version": before, "schema_version": after})
	if before == after {
		logg.Info(ctx, "schema already current")
		return nil
	}
	logg.Info(ctx, "dev migrations applied")
	return nil
}
