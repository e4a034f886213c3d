package postgres

import (
	"context"

	"github.com/xraph/grove/migrate"

	// Registers the PostgreSQL executor used by Store.Migrate.
	_ "github.com/xraph/grove/drivers/pgdriver/pgmigrate"
)

// Migrations is the grove migration group for the flashledger store.
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
    amount     BIGINT NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (owner, asset),
    CONSTRAINT flash_claims_amount_nonnegative CHECK (amount >= 0)
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
		&migrate.Migration{
			Name:    "index_flash_claims_owner_nonzero",
			Version: "20260101000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE INDEX IF NOT EXISTS idx_flash_claims_owner_nonzero ON flash_claims (owner, asset) WHERE amount > 0;
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP INDEX IF EXISTS idx_flash_claims_owner_nonzero`)
				return err
			},
		},
	)
}
