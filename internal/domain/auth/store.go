package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"backoffice/internal/platform/apperr"
	"backoffice/internal/platform/db"
	"backoffice/internal/platform/querier"
)

type Store struct {
	DB querier.TxBeginner
}

func NewStore(pool querier.TxBeginner) *Store {
	return &Store{DB: pool}
}

func (s *Store) FindActiveUserByEmail(ctx context.Context, email string) (AuthUser, error) {
	return s.findActiveUser(ctx, "lower(u.email) = lower($1)", email)
}

func (s *Store) FindActiveUserByID(ctx context.Context, userID string) (AuthUser, error) {
	return s.findActiveUser(ctx, "u.id = $1", userID)
}

func (s *Store) findActiveUser(ctx context.Context, cond string, arg string) (AuthUser, error) {
	var out AuthUser
	err := s.DB.QueryRow(ctx, `
    SELECT u.id, u.email, u.role_id, r.name, u.password_hash, u.mfa_enabled, u.mfa_secret_enc
    FROM users u
    JOIN roles r ON u.role_id = r.id
    WHERE `+cond+` AND u.status = $2 AND NOT r.is_deleted
  `, arg, UserStatusActive).Scan(&out.ID, &out.Email, &out.RoleID, &out.RoleName, &out.PasswordHash, &out.MFAEnabled, &out.MFASecretEnc)
	return out, err
}

func (s *Store) GetProfile(ctx context.Context, userID string) (Profile, error) {
	var out Profile
	err := s.DB.QueryRow(ctx, `
    SELECT u.id, u.email, u.role_id, r.name, u.mfa_enabled, u.last_login,
           COALESCE((SELECT e.id::text FROM employees e WHERE e.user_id = u.id AND NOT e.is_deleted LIMIT 1), '')
    FROM users u
    JOIN roles r ON u.role_id = r.id
    WHERE u.id = $1
  `, userID).Scan(&out.ID, &out.Email, &out.RoleID, &out.Role, &out.MFAEnabled, &out.LastLogin, &out.EmployeeID)
	if err != nil {
		return Profile{}, db.MapError(err, "user")
	}
	return out, nil
}

func (s *Store) UpdateLastLogin(ctx context.Context, userID string) error {
	_, err := s.DB.Exec(ctx, "UPDATE users SET last_login = now() WHERE id = $1", userID)
	return err
}

func (s *Store) CreateSession(ctx context.Context, userID, sessionHash string, expires time.Time) error {
	_, err := s.DB.Exec(ctx, `
    INSERT INTO sessions (user_id, refresh_token, expires_at)
    VALUES ($1, $2, $3)
  `, userID, sessionHash, expires)
	return err
}

func (s *Store) SessionValid(ctx context.Context, userID, sessionHash string) (bool, error) {
	var count int
	if err := s.DB.QueryRow(ctx, `
    SELECT COUNT(1)
    FROM sessions
    WHERE user_id = $1 AND refresh_token = $2 AND expires_at > now() AND revoked_at IS NULL
  `, userID, sessionHash).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

// RotateSession swaps the session hash only while the old session is still live.
func (s *Store) RotateSession(ctx context.Context, userID, oldHash, newHash string, expires time.Time) (bool, error) {
	tag, err := s.DB.Exec(ctx, `
    UPDATE sessions
    SET refresh_token = $1, expires_at = $2, rotated_at = now()
    WHERE user_id = $3 AND refresh_token = $4 AND expires_at > now() AND revoked_at IS NULL
  `, newHash, expires, userID, oldHash)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) RevokeSession(ctx context.Context, userID, sessionHash string) error {
	_, err := s.DB.Exec(ctx, "UPDATE sessions SET revoked_at = now() WHERE user_id = $1 AND refresh_token = $2", userID, sessionHash)
	return err
}

func (s *Store) PurgeExpiredSessions(ctx context.Context) (int64, error) {
	tag, err := s.DB.Exec(ctx, "DELETE FROM sessions WHERE expires_at < now() OR revoked_at < now() - interval '1 day'")
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s *Store) UpdateMFASecret(ctx context.Context, userID string, secretEnc []byte) error {
	_, err := s.DB.Exec(ctx, "UPDATE users SET mfa_secret_enc = $1, mfa_enabled = false WHERE id = $2", secretEnc, userID)
	return err
}

func (s *Store) GetMFASecret(ctx context.Context, userID string) ([]byte, error) {
	var secretEnc []byte
	if err := s.DB.QueryRow(ctx, "SELECT mfa_secret_enc FROM users WHERE id = $1", userID).Scan(&secretEnc); err != nil {
		return nil, err
	}
	return secretEnc, nil
}

func (s *Store) SetMFAEnabled(ctx context.Context, userID string, enabled bool) error {
	_, err := s.DB.Exec(ctx, "UPDATE users SET mfa_enabled = $1 WHERE id = $2", enabled, userID)
	return err
}

func (s *Store) CreatePasswordReset(ctx context.Context, userID, tokenHash string, expires time.Time) error {
	_, err := s.DB.Exec(ctx, "INSERT INTO password_resets (user_id, token, expires_at) VALUES ($1, $2, $3)", userID, tokenHash, expires)
	return err
}

// ConsumePasswordReset sets the new password and marks the token used in one
// transaction, returning the user id.
func (s *Store) ConsumePasswordReset(ctx context.Context, tokenHash, passwordHash string) (string, error) {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return "", err
	}
	defer tx.Rollback(ctx)

	var userID string
	err = tx.QueryRow(ctx, `
    SELECT user_id
    FROM password_resets
    WHERE token = $1 AND expires_at > now() AND used_at IS NULL
    FOR UPDATE
  `, tokenHash).Scan(&userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", apperr.Validation("invalid or expired token")
	}
	if err != nil {
		return "", err
	}
	if _, err := tx.Exec(ctx, "UPDATE users SET password_hash = $1 WHERE id = $2", passwordHash, userID); err != nil {
		return "", err
	}
	if _, err := tx.Exec(ctx, "UPDATE password_resets SET used_at = now() WHERE token = $1", tokenHash); err != nil {
		return "", err
	}
	if _, err := tx.Exec(ctx, "UPDATE sessions SET revoked_at = now() WHERE user_id = $1 AND revoked_at IS NULL", userID); err != nil {
		return "", err
	}
	return userID, tx.Commit(ctx)
}

func (s *Store) PurgeExpiredPasswordResets(ctx context.Context) (int64, error) {
	tag, err := s.DB.Exec(ctx, "DELETE FROM password_resets WHERE expires_at < now() OR used_at IS NOT NULL")
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s *Store) RolePermissions(ctx context.Context, roleID string) ([]string, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT p.key
    FROM role_permissions rp
    JOIN permissions p ON rp.permission_id = p.id
    JOIN roles r ON rp.role_id = r.id
    WHERE rp.role_id = $1 AND NOT r.is_deleted
    ORDER BY p.key
  `, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []string{}
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		out = append(out, key)
	}
	return out, rows.Err()
}

const apiKeyColumns = `k.id, k.name, k.prefix, k.role_id, r.name, k.expires_at, k.last_used_at, k.revoked_at, k.created_at, COALESCE(k.created_by::text, '')`

func scanAPIKey(row pgx.Row) (APIKey, error) {
	var key APIKey
	err := row.Scan(&key.ID, &key.Name, &key.Prefix, &key.RoleID, &key.RoleName, &key.ExpiresAt, &key.LastUsedAt, &key.RevokedAt, &key.CreatedAt, &key.CreatedBy)
	return key, err
}

func (s *Store) CreateAPIKey(ctx context.Context, in APIKeyInput, prefix, keyHash, createdBy string) (APIKey, error) {
	var id string
	err := s.DB.QueryRow(ctx, `
    INSERT INTO api_keys (name, prefix, key_hash, role_id, expires_at, created_by)
    VALUES ($1, $2, $3, $4, $5, $6)
    RETURNING id
  `, in.Name, prefix, keyHash, in.RoleID, in.ExpiresAt, db.NullIfEmpty(createdBy)).Scan(&id)
	if err != nil {
		return APIKey{}, db.MapError(err, "api key")
	}
	key, err := scanAPIKey(s.DB.QueryRow(ctx, `SELECT `+apiKeyColumns+` FROM api_keys k JOIN roles r ON k.role_id = r.id WHERE k.id = $1`, id))
	if err != nil {
		return APIKey{}, db.MapError(err, "api key")
	}
	return key, nil
}

func (s *Store) ListAPIKeys(ctx context.Context) ([]APIKey, error) {
	rows, err := s.DB.Query(ctx, `SELECT `+apiKeyColumns+` FROM api_keys k JOIN roles r ON k.role_id = r.id ORDER BY k.created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []APIKey{}
	for rows.Next() {
		key, err := scanAPIKey(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, key)
	}
	return out, rows.Err()
}

func (s *Store) FindAPIKeyByHash(ctx context.Context, keyHash string) (APIKey, error) {
	return scanAPIKey(s.DB.QueryRow(ctx, `
    SELECT `+apiKeyColumns+`
    FROM api_keys k
    JOIN roles r ON k.role_id = r.id
    WHERE k.key_hash = $1 AND k.revoked_at IS NULL AND (k.expires_at IS NULL OR k.expires_at > now()) AND NOT r.is_deleted
  `, keyHash))
}

func (s *Store) TouchAPIKey(ctx context.Context, id string) error {
	_, err := s.DB.Exec(ctx, "UPDATE api_keys SET last_used_at = now() WHERE id = $1", id)
	return err
}

func (s *Store) RevokeAPIKey(ctx context.Context, id string) error {
	tag, err := s.DB.Exec(ctx, "UPDATE api_keys SET revoked_at = now() WHERE id = $1 AND revoked_at IS NULL", id)
	if err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("api key not found")
	}
	return nil
}
