// ABOUTME: Interaction log operations for the local CRM connector
// ABOUTME: Stores call and message notes against contacts and rewrites them on update
package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/harperreed/callbridge/models"
)

// InteractionRepository stores logged calls and messages of local contacts.
type InteractionRepository struct {
	db *sql.DB
}

// NewInteractionRepository creates a new interaction repository.
func NewInteractionRepository(db *sql.DB) *InteractionRepository {
	return &InteractionRepository{db: db}
}

const interactionColumns = `id, contact_id, interaction_type, subject, body, timestamp, updated_at`

func scanInteraction(row interface{ Scan(...any) error }) (*models.InteractionLog, error) {
	var in models.InteractionLog
	var subject, body sql.NullString
	if err := row.Scan(&in.ID, &in.ContactID, &in.InteractionType, &subject, &body, &in.Timestamp, &in.UpdatedAt); err != nil {
		return nil, err
	}
	in.Subject = subject.String
	in.Body = body.String
	return &in, nil
}

func (r *InteractionRepository) Create(ctx context.Context, in *models.InteractionLog) error {
	in.ID = uuid.New()
	if in.Timestamp.IsZero() {
		in.Timestamp = time.Now().UTC()
	}
	in.UpdatedAt = time.Now().UTC()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO interaction_log (`+interactionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, in.ID.String(), in.ContactID.String(), in.InteractionType, in.Subject, in.Body, in.Timestamp, in.UpdatedAt)
	return wrapInsert("interaction", err)
}

// Get returns the interaction with id, or nil.
func (r *InteractionRepository) Get(ctx context.Context, id uuid.UUID) (*models.InteractionLog, error) {
	in, err := scanInteraction(r.db.QueryRowContext(ctx, `SELECT `+interactionColumns+` FROM interaction_log WHERE id = ?`, id.String()))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get interaction: %w", err)
	}
	return in, nil
}

// Update rewrites subject and body of an interaction.
func (r *InteractionRepository) Update(ctx context.Context, id uuid.UUID, subject, body string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE interaction_log SET subject = ?, body = ?, updated_at = ? WHERE id = ?
	`, subject, body, time.Now().UTC(), id.String())
	if err != nil {
		return fmt.Errorf("failed to update interaction: %w", err)
	}
	return requireRow(res, "interaction "+id.String())
}

// ListByContact returns the interactions of a contact, newest first.
func (r *InteractionRepository) ListByContact(ctx context.Context, contactID uuid.UUID, limit int) ([]models.InteractionLog, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+interactionColumns+` FROM interaction_log
		WHERE contact_id = ?
		ORDER BY timestamp DESC
		LIMIT ?
	`, contactID.String(), normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query interactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []models.InteractionLog
	for rows.Next() {
		in, err := scanInteraction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan interaction: %w", err)
		}
		out = append(out, *in)
	}
	return out, rows.Err()
}
