package auth

import (
	"context"
	"time"
)

type StoreAPI interface {
	FindActiveUserByEmail(ctx context.Context, email string) (AuthUser, error)
	FindActiveUserByID(ctx context.Context, userID string) (AuthUser, error)
	GetProfile(ctx context.Context, userID string) (Profile, error)
	UpdateLastLogin(ctx context.Context, userID string) error

	CreateSession(ctx context.Context, userID, sessionHash string, expires time.Time) error
	SessionValid(ctx context.Context, userID, sessionHash string) (bool, error)
	RotateSession(ctx context.Context, userID, oldHash, newHash string, expires time.Time) (bool, error)
	RevokeSession(ctx context.Context, userID, sessionHash string) error
	PurgeExpiredSessions(ctx context.Context) (int64, error)

	UpdateMFASecret(ctx context.Context, userID string, secretEnc []byte) error
	GetMFASecret(ctx context.Context, userID string) ([]byte, error)
	SetMFAEnabled(ctx context.Context, userID string, enabled bool) error

	CreatePasswordReset(ctx context.Context, userID, tokenHash string, expires time.Time) error
	ConsumePasswordReset(ctx context.Context, tokenHash, passwordHash string) (string, error)
	PurgeExpiredPasswordResets(ctx context.Context) (int64, error)

	RolePermissions(ctx context.Context, roleID string) ([]string, error)

	CreateAPIKey(ctx context.Context, in APIKeyInput, prefix, keyHash, createdBy string) (APIKey, error)
	ListAPIKeys(ctx context.Context) ([]APIKey, error)
	FindAPIKeyByHash(ctx context.Context, keyHash string) (APIKey, error)
	TouchAPIKey(ctx context.Context, id string) error
	RevokeAPIKey(ctx context.Context, id string) error
}
