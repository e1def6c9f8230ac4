package gorm

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

// runMigrations runs all database migrations using gormigrate.
func runMigrations(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		// Migration 001: Core tables
		{
			ID: "001_core_tables",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&RuleRecord{}); err != nil {
					return err
				}
				if err := tx.AutoMigrate(&FeedbackEventRecord{}); err != nil {
					return err
				}
				if err := tx.AutoMigrate(&SegmentWeightsRecord{}); err != nil {
					return err
				}
				return tx.AutoMigrate(&CaseReportRecord{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("rules", "feedback_events", "segment_weights", "case_reports")
			},
		},
	})

	return m.Migrate()
}
