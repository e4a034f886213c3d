package sqlite

import (
	"context"

	"github.com/xraph/grove/migrate"

	// Registers the SQLite executor used by Store.Migrate.
	_ "github.com/xraph/grove/drivers/sqlitedriver/sqlitemigrate"
)

// Migrations is the grove migration group for the flashledger store (SQLite).
var Migrations = migrate.NewGroup("flashledger")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_flash_claims",
			Version: "20260101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS flash_claims (
    owner      TEXT NOT NULL,
    asset      TEXT NOT NULL,
    amount     INTEGER NOT NULL DEFAULT 0 CHECK (amount >= 0),
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (owner, asset)
);

CREATE INDEX IF NOT EXISTS idx_flash_claims_asset ON flash_claims (asset);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS flash_claims`)
				return err
			},
		},
	)
}
