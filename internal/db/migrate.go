package db

import (
	"fmt"

	"github.com/packaginghippo/hippo/internal/config"
	"github.com/packaginghippo/hippo/internal/models"
	"github.com/packaginghippo/hippo/internal/redirect"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AllModels returns every GORM model managed by AutoMigrate.
func AllModels() []interface{} {
	return []interface{}{
		&models.Conversation{},
		&models.Message{},
		&models.Redirect{},
		&models.ReplyJob{},
		&models.Inquiry{},
	}
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}

// SeedRedirects upserts redirect rules from configuration. Seeded rules are
// always active; existing rows with the same source get the new target and type.
func SeedRedirects(db *gorm.DB, rules []config.RedirectConfig) error {
	for _, rc := range rules {
		r := models.Redirect{
			SourcePath: redirect.NormalizePath(rc.Source),
			TargetPath: redirect.NormalizePath(rc.Target),
			Type:       rc.Type,
			Active:     true,
		}
		result := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "source_path"}},
			DoUpdates: clause.AssignmentColumns([]string{"target_path", "type", "active"}),
		}).Create(&r)
		if result.Error != nil {
			return fmt.Errorf("db: seed redirect %q: %w", rc.Source, result.Error)
		}
	}
	return nil
}
