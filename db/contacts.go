// ABOUTME: Contact database operations for the local CRM connector
// ABOUTME: Handles CRUD operations and lookups by normalized phone number or name
package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/harperreed/callbridge/models"
)

// ContactRepository stores local CRM contacts.
type ContactRepository struct {
	db *sql.DB
}

// NewContactRepository creates a new contact repository.
func NewContactRepository(db *sql.DB) *ContactRepository {
	return &ContactRepository{db: db}
}

// PhoneDigits strips everything but digits from a phone number.
func PhoneDigits(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

const contactColumns = `id, name, email, phone, notes, last_contacted_at, created_at, updated_at`

func scanContact(row interface{ Scan(...any) error }) (*models.Contact, error) {
	var c models.Contact
	var email, phone, notes sql.NullString
	var lastContacted sql.NullTime
	if err := row.Scan(&c.ID, &c.Name, &email, &phone, &notes, &lastContacted, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.Email = email.String
	c.Phone = phone.String
	c.Notes = notes.String
	if lastContacted.Valid {
		c.LastContactedAt = &lastContacted.Time
	}
	return &c, nil
}

func (r *ContactRepository) Create(ctx context.Context, contact *models.Contact) error {
	contact.ID = uuid.New()
	now := time.Now().UTC()
	contact.CreatedAt = now
	contact.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO contacts (id, name, email, phone, phone_digits, notes, last_contacted_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, contact.ID.String(), contact.Name, contact.Email, contact.Phone, PhoneDigits(contact.Phone), contact.Notes,
		contact.LastContactedAt, contact.CreatedAt, contact.UpdatedAt)
	return wrapInsert("contact", err)
}

// Get returns the contact with id, or nil.
func (r *ContactRepository) Get(ctx context.Context, id uuid.UUID) (*models.Contact, error) {
	c, err := scanContact(r.db.QueryRowContext(ctx, `SELECT `+contactColumns+` FROM contacts WHERE id = ?`, id.String()))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get contact: %w", err)
	}
	return c, nil
}

// FindByPhone matches on the digits of phone. Numbers with a country code
// also match stored numbers that share their last ten digits.
func (r *ContactRepository) FindByPhone(ctx context.Context, phone string, limit int) ([]models.Contact, error) {
	digits := PhoneDigits(phone)
	if digits == "" {
		return nil, nil
	}
	suffix := digits
	if len(suffix) > 10 {
		suffix = suffix[len(suffix)-10:]
	}
	return r.query(ctx, `
		SELECT `+contactColumns+` FROM contacts
		WHERE phone_digits = ? OR phone_digits LIKE ?
		ORDER BY created_at DESC
		LIMIT ?
	`, digits, "%"+suffix, normalizeLimit(limit))
}

// FindByName matches names case-insensitively as a substring.
func (r *ContactRepository) FindByName(ctx context.Context, name string, limit int) ([]models.Contact, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil
	}
	return r.query(ctx, `
		SELECT `+contactColumns+` FROM contacts
		WHERE LOWER(name) LIKE ?
		ORDER BY name ASC
		LIMIT ?
	`, "%"+strings.ToLower(name)+"%", normalizeLimit(limit))
}

// List returns the most recently created contacts.
func (r *ContactRepository) List(ctx context.Context, limit int) ([]models.Contact, error) {
	return r.query(ctx, `SELECT `+contactColumns+` FROM contacts ORDER BY created_at DESC LIMIT ?`, normalizeLimit(limit))
}

func (r *ContactRepository) query(ctx context.Context, q string, args ...any) ([]models.Contact, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query contacts: %w", err)
	}
	defer rows.Close()

	var contacts []models.Contact
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan contact: %w", err)
		}
		contacts = append(contacts, *c)
	}
	return contacts, rows.Err()
}

// TouchLastContacted records the time of the latest logged interaction.
func (r *ContactRepository) TouchLastContacted(ctx context.Context, id uuid.UUID, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE contacts
		SET last_contacted_at = ?, updated_at = ?
		WHERE id = ?
	`, at, time.Now().UTC(), id.String())
	if err != nil {
		return fmt.Errorf("failed to update contact: %w", err)
	}
	return requireRow(res, "contact "+id.String())
}

// Delete removes a contact and, through the foreign key, its interactions.
func (r *ContactRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM contacts WHERE id = ?`, id.String()); err != nil {
		return fmt.Errorf("failed to delete contact: %w", err)
	}
	return nil
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return 10
	}
	return limit
}
