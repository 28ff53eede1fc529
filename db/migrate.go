package db

import (
	"context"

	"gorm.io/gorm"
)

// DefineTables prepare a database with the vault tables. Embedded SQLite
// deployments and unit tests migrate through this; managed databases migrate
// through atlas instead.
func DefineTables(_ context.Context, db *gorm.DB) error {
	return db.AutoMigrate(
		VaultEventAuditDBEntry{},
		AccountDBEntry{},
		FolderDBEntry{},
		ItemDBEntry{},
		ItemVersionDBEntry{},
	)
}
