package repository

// Schema definitions for the Harrier database.
// Compatible with both SQLite and PostgreSQL.

// Filterable and aggregated fields get their own columns; the nested
// transaction, customer, and evidence documents are stored as JSON and
// only unpacked in Go.
const schemaCases = `
CREATE TABLE IF NOT EXISTS dispute_cases (
    id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    case_number TEXT NOT NULL,
    category TEXT NOT NULL,
    dispute_reason TEXT NOT NULL,
    reason_code TEXT,
    card_network TEXT,
    amount REAL NOT NULL,
    transaction_json TEXT NOT NULL,
    customer_json TEXT NOT NULL,
    evidence_json TEXT,
    risk_score INTEGER NOT NULL DEFAULT 0,
    recommendation TEXT NOT NULL DEFAULT '',
    confidence INTEGER NOT NULL DEFAULT 0,
    analysis TEXT,
    human_decision TEXT,
    analyst_feedback TEXT,
    status TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (id, tenant_id)
);

CREATE INDEX IF NOT EXISTS idx_cases_tenant ON dispute_cases(tenant_id);
CREATE INDEX IF NOT EXISTS idx_cases_status ON dispute_cases(tenant_id, status);
CREATE INDEX IF NOT EXISTS idx_cases_category ON dispute_cases(tenant_id, category);
CREATE INDEX IF NOT EXISTS idx_cases_created ON dispute_cases(tenant_id, created_at);
`

const schemaFlagRules = `
CREATE TABLE IF NOT EXISTS flag_rules (
    id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    name TEXT NOT NULL,
    description TEXT,
    version TEXT NOT NULL,
    expression TEXT NOT NULL,
    flag TEXT NOT NULL,
    enabled INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (id, tenant_id, version)
);

CREATE INDEX IF NOT EXISTS idx_flag_rules_tenant ON flag_rules(tenant_id);
CREATE INDEX IF NOT EXISTS idx_flag_rules_enabled ON flag_rules(tenant_id, enabled);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaCases,
		schemaFlagRules,
	}
}
