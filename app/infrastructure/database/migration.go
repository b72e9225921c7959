package database

import (
	"errors"
	"fmt"
	"slices"

	"gorm.io/gorm"
)

type DatabaseMigration struct {
	gorm.Model
	Version int64 `gorm:"not null;uniqueIndex"`
}

type SchemaVersion struct {
	Migrations []int64 `json:"migrations"`
}

// NewSchemaVersion lists schema versions; bump when a registered schema
// changes shape.
func NewSchemaVersion() SchemaVersion {
	sv := SchemaVersion{
		Migrations: []int64{
			1,
			0,
		},
	}
	slices.Sort(sv.Migrations)
	return sv
}

func (sv SchemaVersion) Latest() int64 {
	return sv.Migrations[len(sv.Migrations)-1]
}

type DBMigrator struct {
	db *gorm.DB
}

func NewDBMigrator(db *gorm.DB) *DBMigrator {
	return &DBMigrator{
		db: db,
	}
}

// Migrate auto-migrates every registered schema and records the schema
// version. It never drops data.
func (d *DBMigrator) Migrate() error {
	db := d.db
	if err := db.AutoMigrate(&DatabaseMigration{}); err != nil {
		return fmt.Errorf("failed to create 'database_migration' table: %w", err)
	}
	for _, model := range SchemaRegistry {
		if err := db.AutoMigrate(model); err != nil {
			return fmt.Errorf("failed to auto migrate schema %T: %w", model, err)
		}
	}

	latest := NewSchemaVersion().Latest()
	return db.Transaction(func(tx *gorm.DB) error {
		var current DatabaseMigration
		err := tx.Order("version desc").First(&current).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
		case err != nil:
			return fmt.Errorf("failed to query migration records: %w", err)
		case current.Version >= latest:
			return nil
		}
		return tx.Create(&DatabaseMigration{Version: latest}).Error
	})
}

// CurrentVersion returns the highest recorded schema version.
func (d *DBMigrator) CurrentVersion() (int64, error) {
	var current DatabaseMigration
	if err := d.db.Order("version desc").First(&current).Error; err != nil {
		return 0, err
	}
	return current.Version, nil
}
