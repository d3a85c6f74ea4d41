package sqlite

// schema defines the dealtrack tables. All timestamps are stored in UTC.
// ledger_events is append-only: nothing in this package (or anywhere else)
// issues UPDATE or DELETE against it.
const schema = `
CREATE TABLE IF NOT EXISTS deals (
	id TEXT PRIMARY KEY,
	tenant_id TEXT NOT NULL,
	borrower_name TEXT NOT NULL DEFAULT '',
	internal_stage TEXT NOT NULL DEFAULT 'intake',
	borrower_stage TEXT NOT NULL DEFAULT 'application_started',
	committee_required INTEGER NOT NULL DEFAULT 1,
	has_pricing_assumptions INTEGER NOT NULL DEFAULT 0,
	risk_pricing_finalized INTEGER NOT NULL DEFAULT 0,
	structural_pricing_ready INTEGER NOT NULL DEFAULT 0,
	pricing_quote_locked INTEGER NOT NULL DEFAULT 0,
	ai_pipeline_complete INTEGER NOT NULL DEFAULT 0,
	spreads_complete INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS checklist_items (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	deal_id TEXT NOT NULL REFERENCES deals(id),
	item_key TEXT NOT NULL,
	required INTEGER NOT NULL DEFAULT 1,
	status TEXT NOT NULL DEFAULT 'pending',
	doc_year INTEGER NOT NULL DEFAULT 0,
	statement_kind TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL,
	UNIQUE(deal_id, item_key)
);
CREATE INDEX IF NOT EXISTS idx_checklist_deal ON checklist_items(deal_id);

CREATE TABLE IF NOT EXISTS loan_requests (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	deal_id TEXT NOT NULL REFERENCES deals(id),
	complete INTEGER NOT NULL DEFAULT 0,
	submitted_at TIMESTAMP NOT NULL,
	completed_at TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_loan_requests_deal ON loan_requests(deal_id);

CREATE TABLE IF NOT EXISTS financial_snapshots (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	deal_id TEXT NOT NULL REFERENCES deals(id),
	payload TEXT NOT NULL DEFAULT '{}',
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_snapshots_deal ON financial_snapshots(deal_id);

CREATE TABLE IF NOT EXISTS decisions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	deal_id TEXT NOT NULL REFERENCES deals(id),
	outcome TEXT NOT NULL,
	decided_by TEXT NOT NULL DEFAULT '',
	decided_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_decisions_deal ON decisions(deal_id);

CREATE TABLE IF NOT EXISTS attestations (
	deal_id TEXT NOT NULL REFERENCES deals(id),
	decision_id INTEGER NOT NULL REFERENCES decisions(id),
	satisfied INTEGER NOT NULL DEFAULT 0,
	updated_at TIMESTAMP NOT NULL,
	PRIMARY KEY (deal_id, decision_id)
);

CREATE TABLE IF NOT EXISTS ledger_events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	deal_id TEXT NOT NULL,
	kind TEXT NOT NULL,
	actor TEXT NOT NULL DEFAULT '',
	from_stage TEXT NOT NULL DEFAULT '',
	to_stage TEXT NOT NULL DEFAULT '',
	forced INTEGER NOT NULL DEFAULT 0,
	reason TEXT NOT NULL DEFAULT '',
	client_ip TEXT NOT NULL DEFAULT '',
	user_agent TEXT NOT NULL DEFAULT '',
	correlation_id TEXT NOT NULL DEFAULT '',
	input TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_ledger_deal ON ledger_events(deal_id);
CREATE INDEX IF NOT EXISTS idx_ledger_deal_kind ON ledger_events(deal_id, kind);
`
