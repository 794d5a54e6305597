package db

// SchemaSQL is the complete schema for fresh loanflow installs.
//
// This is the SINGLE SOURCE OF TRUTH for the database schema. All tests load
// it via GetSchemaSQL(), so repository code referencing a column that does
// not exist here fails immediately with "no such column" at test time.
const SchemaSQL = `
-- Workflow entities (leads, loan cases, bank applications)
CREATE TABLE IF NOT EXISTS entities (
	id TEXT PRIMARY KEY,
	type TEXT NOT NULL CHECK(type IN ('LEAD', 'CASE', 'BANK_APP')),
	stage TEXT NOT NULL,
	awaiting_party TEXT NOT NULL DEFAULT '',
	assignee TEXT NOT NULL DEFAULT '',
	priority INTEGER NOT NULL DEFAULT 0,
	stage_entered_at DATETIME NOT NULL,
	metadata TEXT NOT NULL DEFAULT '{}',
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Stage-history log, one row per accepted transition
CREATE TABLE IF NOT EXISTS entity_history (
	entity_id TEXT NOT NULL,
	seq INTEGER NOT NULL,
	from_stage TEXT NOT NULL,
	to_stage TEXT NOT NULL,
	actor TEXT NOT NULL DEFAULT '',
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (entity_id, seq),
	FOREIGN KEY (entity_id) REFERENCES entities(id)
);

-- Reminder jobs (state owned by the core)
CREATE TABLE IF NOT EXISTS reminder_jobs (
	id TEXT PRIMARY KEY,
	entity_id TEXT NOT NULL,
	rule_id TEXT NOT NULL DEFAULT '',
	channel TEXT NOT NULL CHECK(channel IN ('WHATSAPP', 'EMAIL', 'SMS', 'IN_APP')),
	template_name TEXT NOT NULL,
	recipient TEXT NOT NULL DEFAULT '',
	payload TEXT NOT NULL DEFAULT '{}',
	scheduled_at DATETIME NOT NULL,
	status TEXT NOT NULL CHECK(status IN ('QUEUED', 'SENDING', 'SENT', 'FAILED', 'EXHAUSTED', 'CANCELLED')) DEFAULT 'QUEUED',
	attempts INTEGER NOT NULL DEFAULT 0,
	max_retries INTEGER NOT NULL DEFAULT 3,
	last_error TEXT NOT NULL DEFAULT '',
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_reminder_jobs_due ON reminder_jobs(status, scheduled_at);
CREATE INDEX IF NOT EXISTS idx_reminder_jobs_entity ON reminder_jobs(entity_id);
CREATE INDEX IF NOT EXISTS idx_reminder_jobs_rule ON reminder_jobs(entity_id, rule_id);

-- Escalations (state owned by the core)
CREATE TABLE IF NOT EXISTS escalations (
	id TEXT PRIMARY KEY,
	entity_id TEXT NOT NULL,
	level INTEGER NOT NULL CHECK(level >= 1),
	reason TEXT NOT NULL,
	opened_at DATETIME NOT NULL,
	resolved_at DATETIME,
	resolved_by TEXT
);

CREATE INDEX IF NOT EXISTS idx_escalations_entity ON escalations(entity_id);

-- Insert-if-absent keys backing idempotent effects: action-effect dedup and
-- once-per-episode SLA breach arming
CREATE TABLE IF NOT EXISTS effect_keys (
	key TEXT PRIMARY KEY,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
`
