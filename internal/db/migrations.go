package db

import (
	"fmt"

	"gorm.io/gorm"
)

var migrationStatements = []string{
	`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`,
	`DO $$
	BEGIN
		IF NOT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'bond_state') THEN
			CREATE TYPE bond_state AS ENUM (
				'draft', 'requested', 'active', 'expired', 'cancelled',
				'pending_bank', 'sent', 'receipt', 'solicit_dev', 'recovered', 'solicit_can'
			);
		END IF;
		IF NOT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'bond_type') THEN
			CREATE TYPE bond_type AS ENUM ('provisional', 'compliance', 'warranty', 'compliance_warranty');
		END IF;
	END
	$$;`,
	`CREATE TABLE IF NOT EXISTS bond_sequence (
		code VARCHAR(64) PRIMARY KEY,
		prefix VARCHAR(32) NOT NULL DEFAULT '',
		padding INT NOT NULL DEFAULT 5,
		next_number BIGINT NOT NULL DEFAULT 1
	);`,
	`CREATE TABLE IF NOT EXISTS sale_contract (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		name VARCHAR(128) NOT NULL,
		parent_id UUID REFERENCES sale_contract(id) ON DELETE SET NULL,
		parent_path VARCHAR(512) NOT NULL DEFAULT '',
		amount_untaxed NUMERIC(18,2) NOT NULL DEFAULT 0,
		amount_total NUMERIC(18,2) NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_sale_contract_parent_id ON sale_contract (parent_id) WHERE parent_id IS NOT NULL;`,
	`CREATE INDEX IF NOT EXISTS idx_sale_contract_parent_path ON sale_contract (parent_path);`,
	`CREATE TABLE IF NOT EXISTS sale_order (
		id UUID PRIMARY KEY,
		name VARCHAR(64) NOT NULL,
		contract_id UUID REFERENCES sale_contract(id) ON DELETE SET NULL,
		customer_id UUID,
		state VARCHAR(16) NOT NULL DEFAULT 'draft',
		amount_untaxed NUMERIC(18,2) NOT NULL DEFAULT 0,
		date_order TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_sale_order_contract_id ON sale_order (contract_id) WHERE contract_id IS NOT NULL;`,
	`CREATE TABLE IF NOT EXISTS purchase_order (
		id UUID PRIMARY KEY,
		name VARCHAR(64) NOT NULL,
		contract_id UUID REFERENCES sale_contract(id) ON DELETE SET NULL
	);`,
	`CREATE TABLE IF NOT EXISTS bond_order (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		name VARCHAR(64) NOT NULL,
		external_ref VARCHAR(128) NOT NULL DEFAULT '',
		customer_id UUID,
		journal_id UUID,
		currency VARCHAR(3) NOT NULL DEFAULT 'EUR',
		amount NUMERIC(18,2) NOT NULL DEFAULT 0,
		issue_date DATE,
		due_date DATE,
		digital BOOLEAN NOT NULL DEFAULT FALSE,
		reviewed BOOLEAN NOT NULL DEFAULT FALSE,
		description TEXT NOT NULL DEFAULT '',
		type bond_type NOT NULL DEFAULT 'provisional',
		state bond_state NOT NULL DEFAULT 'draft',
		created_by UUID NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_bond_order_name ON bond_order (name);`,
	`CREATE INDEX IF NOT EXISTS idx_bond_order_state ON bond_order (state);`,
	`CREATE INDEX IF NOT EXISTS idx_bond_order_customer_id ON bond_order (customer_id) WHERE customer_id IS NOT NULL;`,
	`CREATE TABLE IF NOT EXISTS bond_contract (
		bond_id UUID NOT NULL REFERENCES bond_order(id) ON DELETE CASCADE,
		contract_id UUID NOT NULL REFERENCES sale_contract(id) ON DELETE CASCADE,
		PRIMARY KEY (bond_id, contract_id)
	);`,
	`CREATE INDEX IF NOT EXISTS idx_bond_contract_contract_id ON bond_contract (contract_id);`,
	`CREATE TABLE IF NOT EXISTS bond_document (
		guarantee_id UUID PRIMARY KEY REFERENCES bond_order(id) ON DELETE CASCADE,
		file_name VARCHAR(255) NOT NULL,
		content BYTEA NOT NULL,
		uploaded_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE TABLE IF NOT EXISTS bond_note (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		res_model VARCHAR(64) NOT NULL,
		res_id UUID NOT NULL,
		body TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_bond_note_res ON bond_note (res_model, res_id);`,
	`CREATE TABLE IF NOT EXISTS bond_note_mention (
		note_id UUID NOT NULL REFERENCES bond_note(id) ON DELETE CASCADE,
		partner_id UUID NOT NULL,
		PRIMARY KEY (note_id, partner_id)
	);`,
	`CREATE TABLE IF NOT EXISTS bond_activity (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		res_model VARCHAR(64) NOT NULL,
		res_id UUID NOT NULL,
		assignee_id UUID NOT NULL,
		activity_type VARCHAR(32) NOT NULL,
		summary VARCHAR(255) NOT NULL,
		note TEXT NOT NULL DEFAULT '',
		due_date DATE NOT NULL,
		done BOOLEAN NOT NULL DEFAULT FALSE,
		done_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_bond_activity_open
		ON bond_activity (res_model, res_id, assignee_id, activity_type, summary)
		WHERE done = FALSE;`,
	`CREATE TABLE IF NOT EXISTS user_group_member (
		group_code VARCHAR(64) NOT NULL,
		user_id UUID NOT NULL,
		partner_id UUID NOT NULL,
		PRIMARY KEY (group_code, user_id)
	);`,
}

func runMigrations(db *gorm.DB) error {
	for i, stmt := range migrationStatements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}
