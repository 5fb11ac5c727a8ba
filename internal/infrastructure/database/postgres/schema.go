package postgres

import (
	"context"
	"customer-service/internal/pkg/apperrors"
	"fmt"
	"log/slog"
)

const schemaDDL = `
CREATE TABLE IF NOT EXISTS customers (
    id         BIGSERIAL PRIMARY KEY,
    first_name VARCHAR(64) NOT NULL,
    last_name  VARCHAR(64) NOT NULL,
    active     BOOLEAN NOT NULL DEFAULT TRUE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_customers_name ON customers (first_name, last_name);
CREATE INDEX IF NOT EXISTS idx_customers_active ON customers (active);

CREATE TABLE IF NOT EXISTS addresses (
    id          BIGSERIAL PRIMARY KEY,
    customer_id BIGINT NOT NULL REFERENCES customers (id) ON DELETE CASCADE,
    name        VARCHAR(64) NOT NULL DEFAULT '',
    street      VARCHAR(64) NOT NULL DEFAULT '',
    city        VARCHAR(64) NOT NULL DEFAULT '',
    state       VARCHAR(64) NOT NULL DEFAULT '',
    postalcode  VARCHAR(16) NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_addresses_customer_id ON addresses (customer_id);
`

// EnsureSchema creates the customer tables when they are missing. It never alters existing tables.
func EnsureSchema(ctx context.Context, db DBPool, logger *slog.Logger) error {
	logger.Info("Ensuring customer schema exists...")
	if _, err := db.Exec(ctx, schemaDDL); err != nil {
		logger.Error("Failed to create customer schema", "error", err)
		return fmt.Errorf("%w: failed to create schema: %w", apperrors.ErrDatabase, err)
	}
	logger.Info("Customer schema ready.")
	return nil
}
