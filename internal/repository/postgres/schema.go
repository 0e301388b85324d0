package postgres

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
)

// InitSchema creates the tables and indexes used by the repositories.
func InitSchema(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`
CREATE TABLE IF NOT EXISTS agents (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL DEFAULT '',
  phone TEXT NOT NULL DEFAULT '',
  status TEXT NOT NULL,
  zones TEXT[] NOT NULL DEFAULT '{}',
  lat DOUBLE PRECISION NULL,
  lng DOUBLE PRECISION NULL,
  location_updated_at TIMESTAMPTZ NULL,
  performance JSONB NOT NULL DEFAULT '{}',
  is_active BOOLEAN NOT NULL DEFAULT TRUE,
  created_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_agents_status ON agents(status) WHERE is_active`,
		`CREATE INDEX IF NOT EXISTS idx_agents_zones ON agents USING GIN (zones)`,
		`
CREATE TABLE IF NOT EXISTS delivery_orders (
  id TEXT PRIMARY KEY,
  marketplace_order_id TEXT NOT NULL,
  agent_id TEXT NOT NULL REFERENCES agents(id),
  pickup JSONB NOT NULL,
  dropoff JSONB NOT NULL,
  items JSONB NOT NULL DEFAULT '[]',
  order_value NUMERIC(14,2) NOT NULL DEFAULT 0,
  payment_info JSONB NOT NULL,
  status TEXT NOT NULL,
  tracking JSONB NOT NULL,
  performance JSONB NOT NULL,
  metadata JSONB NOT NULL,
  created_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL
)`,
		// At most one non-terminal order per agent.
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_delivery_orders_active_agent
  ON delivery_orders(agent_id) WHERE status IN ('assigned', 'picked_up', 'in_transit')`,
		`
CREATE TABLE IF NOT EXISTS wallets (
  agent_id TEXT PRIMARY KEY REFERENCES agents(id),
  currency TEXT NOT NULL,
  current_balance NUMERIC(14,2) NOT NULL DEFAULT 0 CHECK (current_balance >= 0),
  total_earned NUMERIC(14,2) NOT NULL DEFAULT 0,
  total_withdrawn NUMERIC(14,2) NOT NULL DEFAULT 0,
  pending_withdrawal NUMERIC(14,2) NOT NULL DEFAULT 0 CHECK (pending_withdrawal >= 0),
  is_active BOOLEAN NOT NULL DEFAULT TRUE,
  created_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL
)`,
		`
CREATE TABLE IF NOT EXISTS ledger_transactions (
  id TEXT PRIMARY KEY,
  agent_id TEXT NOT NULL REFERENCES wallets(agent_id),
  type TEXT NOT NULL,
  amount NUMERIC(14,2) NOT NULL,
  currency TEXT NOT NULL,
  status TEXT NOT NULL,
  order_id TEXT NULL,
  idempotency_key TEXT NULL,
  metadata JSONB NULL,
  description TEXT NOT NULL DEFAULT '',
  created_at TIMESTAMPTZ NOT NULL,
  completed_at TIMESTAMPTZ NULL,
  CONSTRAINT uq_ledger_transactions_idempotency UNIQUE (idempotency_key)
)`,
		`CREATE INDEX IF NOT EXISTS idx_ledger_transactions_agent_created ON ledger_transactions(agent_id, created_at DESC)`,
		`
CREATE TABLE IF NOT EXISTS settings (
  id SMALLINT PRIMARY KEY CHECK (id = 1),
  config JSONB NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL
)`,
	}

	for _, q := range stmts {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return errors.Wrap(err, "init schema")
		}
	}
	return nil
}
