// ABOUTME: Database schema definitions and migrations
// ABOUTME: Handles SQLite table creation for users, log mappings and the local CRM
package db

import (
	"database/sql"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	platform TEXT NOT NULL,
	hostname TEXT,
	timezone_name TEXT,
	timezone_offset TEXT,
	access_token TEXT,
	refresh_token TEXT,
	token_expiry DATETIME,
	proxy_id TEXT,
	platform_additional_info TEXT,
	user_settings TEXT,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_users_platform ON users(platform);

CREATE TABLE IF NOT EXISTS call_logs (
	session_id TEXT PRIMARY KEY,
	id TEXT NOT NULL,
	platform TEXT NOT NULL,
	third_party_log_id TEXT NOT NULL,
	user_id TEXT NOT NULL,
	contact_id TEXT,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_call_logs_user ON call_logs(user_id);

CREATE TABLE IF NOT EXISTS message_logs (
	id TEXT PRIMARY KEY,
	platform TEXT NOT NULL,
	conversation_id TEXT,
	third_party_log_id TEXT NOT NULL,
	user_id TEXT NOT NULL,
	conversation_log_id TEXT,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_message_logs_conversation_log ON message_logs(conversation_log_id);

CREATE TABLE IF NOT EXISTS proxy_configs (
	id TEXT PRIMARY KEY,
	config TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS contacts (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	email TEXT,
	phone TEXT,
	phone_digits TEXT,
	notes TEXT,
	last_contacted_at DATETIME,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_contacts_phone_digits ON contacts(phone_digits);
CREATE INDEX IF NOT EXISTS idx_contacts_name ON contacts(name);

CREATE TABLE IF NOT EXISTS interaction_log (
	id TEXT PRIMARY KEY,
	contact_id TEXT NOT NULL,
	interaction_type TEXT NOT NULL CHECK(interaction_type IN ('call', 'message', 'fax')),
	subject TEXT,
	body TEXT,
	timestamp DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (contact_id) REFERENCES contacts(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_interaction_log_contact ON interaction_log(contact_id);
CREATE INDEX IF NOT EXISTS idx_interaction_log_timestamp ON interaction_log(timestamp DESC);
`

func InitSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}
