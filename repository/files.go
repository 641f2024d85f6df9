package repository

import (
	"context"
	"embed"
	"io/fs"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
)

//go:embed data/sql/migrations
var migrationsFS embed.FS

const migrationsDir = "data/sql/migrations"

// GetMigrationsFS returns the migration files for this package
func GetMigrationsFS() embed.FS {
	return migrationsFS
}

func newMigrator(db *bun.DB) (*migrate.Migrator, error) {
	dir, err := fs.Sub(migrationsFS, migrationsDir)
	if err != nil {
		return nil, err
	}

	migrations := migrate.NewMigrations()
	if err := migrations.Discover(dir); err != nil {
		return nil, err
	}

	return migrate.NewMigrator(db, migrations), nil
}

// Migrate applies pending up migrations and returns the group it ran.
// The group is empty when the schema is already current.
func Migrate(ctx context.Context, db *bun.DB) (*migrate.MigrationGroup, error) {
	migrator, err := newMigrator(db)
	if err != nil {
		return nil, err
	}

	if err := migrator.Init(ctx); err != nil {
		return nil, err
	}

	return migrator.Migrate(ctx)
}

// Rollback reverts the last applied migration group
func Rollback(ctx context.Context, db *bun.DB) (*migrate.MigrationGroup, error) {
	migrator, err := newMigrator(db)
	if err != nil {
		return nil, err
	}

	if err := migrator.Init(ctx); err != nil {
		return nil, err
	}

	return migrator.Rollback(ctx)
}
