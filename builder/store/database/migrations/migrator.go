package migrations

import (
	"github.com/uptrace/bun/migrate"

	"github.com/openfoodhub/insight-server/builder/store/database"
)

func NewMigrator(db *database.DB) *migrate.Migrator {
	return migrate.NewMigrator(db.Core, Migrations)
}
