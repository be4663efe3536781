// ABOUTME: User repository storing tokens, timezone and per-user settings
// ABOUTME: Settings and platform info are persisted as JSON text columns
package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/harperreed/callbridge/models"
)

// UserRepository provides access to the users table.
type UserRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new user repository.
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Get returns the user with id, or nil when there is none.
func (r *UserRepository) Get(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	var hostname, tzName, tzOffset, access, refresh, proxyID, info, settings sql.NullString
	var expiry sql.NullTime

	err := r.db.QueryRowContext(ctx, `
		SELECT id, platform, hostname, timezone_name, timezone_offset, access_token, refresh_token,
		       token_expiry, proxy_id, platform_additional_info, user_settings, created_at, updated_at
		FROM users WHERE id = ?
	`, id).Scan(
		&u.ID, &u.Platform, &hostname, &tzName, &tzOffset, &access, &refresh,
		&expiry, &proxyID, &info, &settings, &u.CreatedAt, &u.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	u.HostName = hostname.String
	u.TimezoneName = tzName.String
	u.TimezoneOffset = tzOffset.String
	u.AccessToken = access.String
	u.RefreshToken = refresh.String
	u.ProxyID = proxyID.String
	if expiry.Valid {
		u.TokenExpiry = &expiry.Time
	}
	if info.Valid && info.String != "" {
		if err := json.Unmarshal([]byte(info.String), &u.PlatformAdditionalInfo); err != nil {
			return nil, fmt.Errorf("failed to decode platform info of user %s: %w", id, err)
		}
	}
	if settings.Valid && settings.String != "" {
		if err := json.Unmarshal([]byte(settings.String), &u.UserSettings); err != nil {
			return nil, fmt.Errorf("failed to decode settings of user %s: %w", id, err)
		}
	}
	return &u, nil
}

// Save inserts or fully replaces a user.
func (r *UserRepository) Save(ctx context.Context, u *models.User) error {
	if u == nil || u.ID == "" || u.Platform == "" {
		return fmt.Errorf("user id and platform are required")
	}
	info, err := marshalJSON(u.PlatformAdditionalInfo)
	if err != nil {
		return err
	}
	settings, err := marshalJSON(u.UserSettings)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO users (id, platform, hostname, timezone_name, timezone_offset, access_token, refresh_token,
		                   token_expiry, proxy_id, platform_additional_info, user_settings, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			platform = excluded.platform,
			hostname = excluded.hostname,
			timezone_name = excluded.timezone_name,
			timezone_offset = excluded.timezone_offset,
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			token_expiry = excluded.token_expiry,
			proxy_id = excluded.proxy_id,
			platform_additional_info = excluded.platform_additional_info,
			user_settings = excluded.user_settings,
			updated_at = excluded.updated_at
	`, u.ID, u.Platform, u.HostName, u.TimezoneName, u.TimezoneOffset, u.AccessToken, u.RefreshToken,
		u.TokenExpiry, u.ProxyID, info, settings, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}
	return nil
}

// UpdateTokens stores refreshed OAuth tokens.
func (r *UserRepository) UpdateTokens(ctx context.Context, id, accessToken, refreshToken string, expiry *time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users SET access_token = ?, refresh_token = ?, token_expiry = ?, updated_at = ?
		WHERE id = ?
	`, accessToken, refreshToken, expiry, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update tokens: %w", err)
	}
	return requireRow(res, "user "+id)
}

// UpdateSettings replaces the settings of a user.
func (r *UserRepository) UpdateSettings(ctx context.Context, id string, settings map[string]models.UserSetting) error {
	raw, err := marshalJSON(settings)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `UPDATE users SET user_settings = ?, updated_at = ? WHERE id = ?`,
		raw, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update settings: %w", err)
	}
	return requireRow(res, "user "+id)
}

// Delete removes a user. Deleting a missing user is not an error.
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return nil
}

func marshalJSON(v any) (sql.NullString, error) {
	switch m := v.(type) {
	case map[string]any:
		if m == nil {
			return sql.NullString{}, nil
		}
	case map[string]models.UserSetting:
		if m == nil {
			return sql.NullString{}, nil
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to encode json column: %w", err)
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func requireRow(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return nil
}
