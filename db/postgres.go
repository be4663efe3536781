// ABOUTME: PostgreSQL backend for the call and message log mapping contracts
// ABOUTME: Used when deployments share mappings across several callbridge processes
package db

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/harperreed/callbridge/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresLogStore owns a pool and exposes the call and message mapping stores.
type PostgresLogStore struct {
	pool   *pgxpool.Pool
	schema string
}

// PostgresOption configures the store.
type PostgresOption func(*PostgresLogStore) error

var pgIdentRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// WithSchema sets the Postgres schema used for the mapping tables (default "callbridge").
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresLogStore) error {
		schema = strings.TrimSpace(schema)
		if !pgIdentRe.MatchString(schema) {
			return fmt.Errorf("invalid postgres schema %q", schema)
		}
		s.schema = schema
		return nil
	}
}

// OpenPostgres connects a pool to dsn and checks connectivity.
func OpenPostgres(ctx context.Context, dsn string, maxConns int32) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres dsn: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect postgres: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	return pool, nil
}

// NewPostgresLogStore constructs a store on an existing pool.
func NewPostgresLogStore(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresLogStore, error) {
	st := &PostgresLogStore{pool: pool, schema: "callbridge"}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.pool == nil {
		return nil, errors.New("postgres pool is required")
	}
	return st, nil
}

// Migrate creates the schema and mapping tables when missing.
func (s *PostgresLogStore) Migrate(ctx context.Context) error {
	schema := pgx.Identifier{s.schema}.Sanitize()
	callLogs := s.ident("call_logs")
	messageLogs := s.ident("message_logs")

	stmts := []string{
		`CREATE SCHEMA IF NOT EXISTS ` + schema,
		`CREATE TABLE IF NOT EXISTS ` + callLogs + ` (
			session_id TEXT PRIMARY KEY,
			id TEXT NOT NULL,
			platform TEXT NOT NULL,
			third_party_log_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			contact_id TEXT,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS call_logs_user_idx ON ` + callLogs + ` (user_id)`,
		`CREATE TABLE IF NOT EXISTS ` + messageLogs + ` (
			id TEXT PRIMARY KEY,
			platform TEXT NOT NULL,
			conversation_id TEXT,
			third_party_log_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			conversation_log_id TEXT,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS message_logs_conversation_log_idx ON ` + messageLogs + ` (conversation_log_id)`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to migrate postgres log store: %w", err)
		}
	}
	return nil
}

// CallLogs returns the call log mapping store.
func (s *PostgresLogStore) CallLogs() *PostgresCallLogs {
	return &PostgresCallLogs{store: s}
}

// MessageLogs returns the message log mapping store.
func (s *PostgresLogStore) MessageLogs() *PostgresMessageLogs {
	return &PostgresMessageLogs{store: s}
}

func (s *PostgresLogStore) ident(name string) string {
	return pgx.Identifier{s.schema, name}.Sanitize()
}

func pgIsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "23505" // unique_violation
}

// PostgresCallLogs mirrors CallLogRepository on PostgreSQL.
type PostgresCallLogs struct {
	store *PostgresLogStore
}

func (p *PostgresCallLogs) FindBySessionID(ctx context.Context, sessionID string) (*models.CallLogRecord, error) {
	var rec models.CallLogRecord
	var contactID *string
	err := p.store.pool.QueryRow(ctx, `
		SELECT id, session_id, platform, third_party_log_id, user_id, contact_id, created_at, updated_at
		FROM `+p.store.ident("call_logs")+` WHERE session_id = $1
	`, sessionID).Scan(&rec.ID, &rec.SessionID, &rec.Platform, &rec.ThirdPartyLogID, &rec.UserID,
		&contactID, &rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find call log: %w", err)
	}
	if contactID != nil {
		rec.ContactID = *contactID
	}
	return &rec, nil
}

func (p *PostgresCallLogs) Create(ctx context.Context, rec *models.CallLogRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = now
	}

	_, err := p.store.pool.Exec(ctx, `
		INSERT INTO `+p.store.ident("call_logs")+` (session_id, id, platform, third_party_log_id, user_id, contact_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, rec.SessionID, rec.ID, rec.Platform, rec.ThirdPartyLogID, rec.UserID, rec.ContactID, rec.CreatedAt, rec.UpdatedAt)
	if pgIsUniqueViolation(err) {
		return fmt.Errorf("call log for session %s: %w", rec.SessionID, ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("failed to create call log: %w", err)
	}
	return nil
}

func (p *PostgresCallLogs) ListByUser(ctx context.Context, userID string, limit int) ([]models.CallLogRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := p.store.pool.Query(ctx, `
		SELECT id, session_id, platform, third_party_log_id, user_id, contact_id, created_at, updated_at
		FROM `+p.store.ident("call_logs")+` WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query call logs: %w", err)
	}
	defer rows.Close()

	var out []models.CallLogRecord
	for rows.Next() {
		var rec models.CallLogRecord
		var contactID *string
		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.Platform, &rec.ThirdPartyLogID, &rec.UserID,
			&contactID, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan call log: %w", err)
		}
		if contactID != nil {
			rec.ContactID = *contactID
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// PostgresMessageLogs mirrors MessageLogRepository on PostgreSQL.
type PostgresMessageLogs struct {
	store *PostgresLogStore
}

func (p *PostgresMessageLogs) scanOne(ctx context.Context, where string, arg any) (*models.MessageLogRecord, error) {
	var rec models.MessageLogRecord
	var conversationID, conversationLogID *string
	err := p.store.pool.QueryRow(ctx, `
		SELECT `+messageLogColumns+` FROM `+p.store.ident("message_logs")+` WHERE `+where+`
		ORDER BY created_at ASC LIMIT 1
	`, arg).Scan(&rec.ID, &rec.Platform, &conversationID, &rec.ThirdPartyLogID, &rec.UserID,
		&conversationLogID, &rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find message log: %w", err)
	}
	if conversationID != nil {
		rec.ConversationID = *conversationID
	}
	if conversationLogID != nil {
		rec.ConversationLogID = *conversationLogID
	}
	return &rec, nil
}

func (p *PostgresMessageLogs) Find(ctx context.Context, id string) (*models.MessageLogRecord, error) {
	return p.scanOne(ctx, "id = $1", id)
}

func (p *PostgresMessageLogs) FindByConversationLogID(ctx context.Context, conversationLogID string) (*models.MessageLogRecord, error) {
	return p.scanOne(ctx, "conversation_log_id = $1", conversationLogID)
}

func (p *PostgresMessageLogs) FindLogged(ctx context.Context, ids []string) (map[string]bool, error) {
	logged := make(map[string]bool, len(ids))
	if len(ids) == 0 {
		return logged, nil
	}
	rows, err := p.store.pool.Query(ctx, `SELECT id FROM `+p.store.ident("message_logs")+` WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query message logs: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan message log: %w", err)
		}
		logged[id] = true
	}
	return logged, rows.Err()
}

func (p *PostgresMessageLogs) Create(ctx context.Context, rec *models.MessageLogRecord) error {
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = now
	}
	_, err := p.store.pool.Exec(ctx, `
		INSERT INTO `+p.store.ident("message_logs")+` (`+messageLogColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, rec.ID, rec.Platform, rec.ConversationID, rec.ThirdPartyLogID, rec.UserID, rec.ConversationLogID, rec.CreatedAt, rec.UpdatedAt)
	if pgIsUniqueViolation(err) {
		return fmt.Errorf("message log %s: %w", rec.ID, ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("failed to create message log: %w", err)
	}
	return nil
}

func (p *PostgresMessageLogs) Touch(ctx context.Context, id string) error {
	tag, err := p.store.pool.Exec(ctx, `UPDATE `+p.store.ident("message_logs")+` SET updated_at = $1 WHERE id = $2`, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update message log: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("message log %s: %w", id, ErrNotFound)
	}
	return nil
}
