// ABOUTME: Call and message log mapping repositories
// ABOUTME: Session ids and message ids are primary keys so duplicates fail at insert time
package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/harperreed/callbridge/models"
)

// CallLogRepository maps telephony sessions to CRM log records.
type CallLogRepository struct {
	db *sql.DB
}

// NewCallLogRepository creates a new call log repository.
func NewCallLogRepository(db *sql.DB) *CallLogRepository {
	return &CallLogRepository{db: db}
}

// FindBySessionID returns the mapping of sessionID, or nil when the session was never logged.
func (r *CallLogRepository) FindBySessionID(ctx context.Context, sessionID string) (*models.CallLogRecord, error) {
	var rec models.CallLogRecord
	var contactID sql.NullString
	err := r.db.QueryRowContext(ctx, `
		SELECT id, session_id, platform, third_party_log_id, user_id, contact_id, created_at, updated_at
		FROM call_logs WHERE session_id = ?
	`, sessionID).Scan(&rec.ID, &rec.SessionID, &rec.Platform, &rec.ThirdPartyLogID, &rec.UserID,
		&contactID, &rec.CreatedAt, &rec.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find call log: %w", err)
	}
	rec.ContactID = contactID.String
	return &rec, nil
}

// Create inserts a mapping. A second mapping for the same session fails with ErrDuplicate.
func (r *CallLogRepository) Create(ctx context.Context, rec *models.CallLogRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO call_logs (session_id, id, platform, third_party_log_id, user_id, contact_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.SessionID, rec.ID, rec.Platform, rec.ThirdPartyLogID, rec.UserID, rec.ContactID, rec.CreatedAt, rec.UpdatedAt)
	return wrapInsert("call log for session "+rec.SessionID, err)
}

// ListByUser returns the most recent mappings of a user.
func (r *CallLogRepository) ListByUser(ctx context.Context, userID string, limit int) ([]models.CallLogRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, session_id, platform, third_party_log_id, user_id, contact_id, created_at, updated_at
		FROM call_logs WHERE user_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query call logs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []models.CallLogRecord
	for rows.Next() {
		var rec models.CallLogRecord
		var contactID sql.NullString
		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.Platform, &rec.ThirdPartyLogID, &rec.UserID,
			&contactID, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan call log: %w", err)
		}
		rec.ContactID = contactID.String
		out = append(out, rec)
	}
	return out, rows.Err()
}

// All returns every call log mapping, oldest first.
func (r *CallLogRepository) All(ctx context.Context) ([]models.CallLogRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, session_id, platform, third_party_log_id, user_id, contact_id, created_at, updated_at
		FROM call_logs ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query call logs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []models.CallLogRecord
	for rows.Next() {
		var rec models.CallLogRecord
		var contactID sql.NullString
		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.Platform, &rec.ThirdPartyLogID, &rec.UserID,
			&contactID, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan call log: %w", err)
		}
		rec.ContactID = contactID.String
		out = append(out, rec)
	}
	return out, rows.Err()
}

// MessageLogRepository maps message ids and shared conversation log ids to CRM records.
type MessageLogRepository struct {
	db *sql.DB
}

// NewMessageLogRepository creates a new message log repository.
func NewMessageLogRepository(db *sql.DB) *MessageLogRepository {
	return &MessageLogRepository{db: db}
}

const messageLogColumns = `id, platform, conversation_id, third_party_log_id, user_id, conversation_log_id, created_at, updated_at`

func scanMessageLog(row interface{ Scan(...any) error }) (*models.MessageLogRecord, error) {
	var rec models.MessageLogRecord
	var conversationID, conversationLogID sql.NullString
	if err := row.Scan(&rec.ID, &rec.Platform, &conversationID, &rec.ThirdPartyLogID, &rec.UserID,
		&conversationLogID, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return nil, err
	}
	rec.ConversationID = conversationID.String
	rec.ConversationLogID = conversationLogID.String
	return &rec, nil
}

// Find returns the mapping with id, or nil.
func (r *MessageLogRepository) Find(ctx context.Context, id string) (*models.MessageLogRecord, error) {
	rec, err := scanMessageLog(r.db.QueryRowContext(ctx, `SELECT `+messageLogColumns+` FROM message_logs WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find message log: %w", err)
	}
	return rec, nil
}

// FindLogged returns the subset of ids that already have a mapping.
func (r *MessageLogRepository) FindLogged(ctx context.Context, ids []string) (map[string]bool, error) {
	logged := make(map[string]bool, len(ids))
	if len(ids) == 0 {
		return logged, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM message_logs WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query message logs: %w", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan message log: %w", err)
		}
		logged[id] = true
	}
	return logged, rows.Err()
}

// FindByConversationLogID returns the first mapping of a conversation day, or nil.
func (r *MessageLogRepository) FindByConversationLogID(ctx context.Context, conversationLogID string) (*models.MessageLogRecord, error) {
	rec, err := scanMessageLog(r.db.QueryRowContext(ctx, `
		SELECT `+messageLogColumns+` FROM message_logs
		WHERE conversation_log_id = ?
		ORDER BY created_at ASC
		LIMIT 1
	`, conversationLogID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find message log by conversation: %w", err)
	}
	return rec, nil
}

// Create inserts a mapping, failing with ErrDuplicate when the id is taken.
func (r *MessageLogRepository) Create(ctx context.Context, rec *models.MessageLogRecord) error {
	now := time.Now().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO message_logs (`+messageLogColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.Platform, rec.ConversationID, rec.ThirdPartyLogID, rec.UserID, rec.ConversationLogID, rec.CreatedAt, rec.UpdatedAt)
	return wrapInsert("message log "+rec.ID, err)
}

// Touch marks an existing mapping as updated, used when a shared conversation log is rewritten.
func (r *MessageLogRepository) Touch(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE message_logs SET updated_at = ? WHERE id = ?`, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update message log: %w", err)
	}
	return requireRow(res, "message log "+id)
}

// All returns every message log mapping, oldest first.
func (r *MessageLogRepository) All(ctx context.Context) ([]models.MessageLogRecord, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+messageLogColumns+` FROM message_logs ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query message logs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []models.MessageLogRecord
	for rows.Next() {
		rec, err := scanMessageLog(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message log: %w", err)
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}
