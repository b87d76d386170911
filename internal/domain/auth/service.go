package auth

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"

	"backoffice/internal/platform/apperr"
	"backoffice/internal/platform/cache"
	cryptoutil "backoffice/internal/platform/crypto"
	"backoffice/internal/platform/db"
	"backoffice/internal/platform/email"
)

const (
	apiKeyPrefix = "bo_"
	mfaIssuer    = "Backoffice"
)

type Options struct {
	Secret        string
	TokenTTL      time.Duration
	CacheTTL      time.Duration
	PublicBaseURL string
	EmailFrom     string
}

type Service struct {
	store  StoreAPI
	crypto *cryptoutil.Service
	cache  cache.Cache
	mailer email.Mailer
	opts   Options
}

func NewService(store StoreAPI, crypto *cryptoutil.Service, c cache.Cache, mailer email.Mailer, opts Options) *Service {
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = 8 * time.Hour
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 5 * time.Minute
	}
	if c == nil {
		c = cache.Noop{}
	}
	return &Service{store: store, crypto: crypto, cache: c, mailer: mailer, opts: opts}
}

func (s *Service) Login(ctx context.Context, emailAddr, password, mfaCode string) (LoginResult, error) {
	user, err := s.store.FindActiveUserByEmail(ctx, strings.TrimSpace(emailAddr))
	if err != nil {
		if db.IsNoRows(err) {
			return LoginResult{}, apperr.Unauthorized("invalid credentials")
		}
		return LoginResult{}, fmt.Errorf("find user: %w", err)
	}
	if err := CheckPassword(user.PasswordHash, password); err != nil {
		return LoginResult{}, apperr.Unauthorized("invalid credentials")
	}
	if user.MFAEnabled {
		if strings.TrimSpace(mfaCode) == "" {
			return LoginResult{}, apperr.Unauthorized("mfa code required")
		}
		secret, err := s.crypto.DecryptString(user.MFASecretEnc)
		if err != nil || secret == "" || !totp.Validate(strings.TrimSpace(mfaCode), secret) {
			return LoginResult{}, apperr.Unauthorized("invalid mfa code")
		}
	}

	result, err := s.issueSession(ctx, user)
	if err != nil {
		return LoginResult{}, err
	}
	if err := s.store.UpdateLastLogin(ctx, user.ID); err != nil {
		slog.Warn("update last_login failed", "userId", user.ID, "err", err)
	}
	return result, nil
}

func (s *Service) issueSession(ctx context.Context, user AuthUser) (LoginResult, error) {
	sessionID, err := cryptoutil.RandomToken(32)
	if err != nil {
		return LoginResult{}, fmt.Errorf("generate session: %w", err)
	}
	expires := time.Now().Add(s.opts.TokenTTL)
	if err := s.store.CreateSession(ctx, user.ID, cryptoutil.HashToken(sessionID), expires); err != nil {
		return LoginResult{}, fmt.Errorf("create session: %w", err)
	}
	return s.signToken(ctx, user, sessionID, expires)
}

func (s *Service) signToken(ctx context.Context, user AuthUser, sessionID string, expires time.Time) (LoginResult, error) {
	token, err := GenerateToken(s.opts.Secret, Claims{
		UserID:    user.ID,
		RoleID:    user.RoleID,
		RoleName:  user.RoleName,
		SessionID: sessionID,
	}, time.Until(expires))
	if err != nil {
		return LoginResult{}, fmt.Errorf("sign token: %w", err)
	}
	perms, err := s.Permissions(ctx, user.RoleID)
	if err != nil {
		return LoginResult{}, err
	}
	return LoginResult{
		Token:     token,
		ExpiresAt: expires.UTC(),
		User: Profile{
			ID:          user.ID,
			Email:       user.Email,
			RoleID:      user.RoleID,
			Role:        user.RoleName,
			MFAEnabled:  user.MFAEnabled,
			Permissions: perms,
		},
	}, nil
}

func (s *Service) Logout(ctx context.Context, user UserContext) error {
	if user.UserID == "" || user.SessionID == "" {
		return nil
	}
	return s.store.RevokeSession(ctx, user.UserID, cryptoutil.HashToken(user.SessionID))
}

// Refresh rotates the session behind a still-valid token and re-reads the
// user's role so permission changes take effect.
func (s *Service) Refresh(ctx context.Context, tokenString string) (LoginResult, error) {
	claims, err := ParseToken(s.opts.Secret, tokenString)
	if err != nil || claims.SessionID == "" {
		return LoginResult{}, apperr.Unauthorized("authentication required")
	}
	user, err := s.store.FindActiveUserByID(ctx, claims.UserID)
	if err != nil {
		if db.IsNoRows(err) {
			return LoginResult{}, apperr.Unauthorized("session expired")
		}
		return LoginResult{}, fmt.Errorf("find user: %w", err)
	}
	newSessionID, err := cryptoutil.RandomToken(32)
	if err != nil {
		return LoginResult{}, fmt.Errorf("generate session: %w", err)
	}
	expires := time.Now().Add(s.opts.TokenTTL)
	rotated, err := s.store.RotateSession(ctx, claims.UserID, cryptoutil.HashToken(claims.SessionID), cryptoutil.HashToken(newSessionID), expires)
	if err != nil {
		return LoginResult{}, fmt.Errorf("rotate session: %w", err)
	}
	if !rotated {
		return LoginResult{}, apperr.Unauthorized("session expired")
	}
	return s.signToken(ctx, user, newSessionID, expires)
}

// Authenticate validates a bearer token and its backing session.
func (s *Service) Authenticate(ctx context.Context, tokenString string) (UserContext, error) {
	claims, err := ParseToken(s.opts.Secret, tokenString)
	if err != nil || claims.SessionID == "" {
		return UserContext{}, apperr.Unauthorized("invalid token")
	}
	valid, err := s.store.SessionValid(ctx, claims.UserID, cryptoutil.HashToken(claims.SessionID))
	if err != nil {
		return UserContext{}, fmt.Errorf("check session: %w", err)
	}
	if !valid {
		return UserContext{}, apperr.Unauthorized("session expired")
	}
	return UserContext{UserID: claims.UserID, RoleID: claims.RoleID, RoleName: claims.RoleName, SessionID: claims.SessionID}, nil
}

func (s *Service) AuthenticateAPIKey(ctx context.Context, rawKey string) (UserContext, error) {
	if !strings.HasPrefix(rawKey, apiKeyPrefix) {
		return UserContext{}, apperr.Unauthorized("invalid api key")
	}
	key, err := s.store.FindAPIKeyByHash(ctx, cryptoutil.HashToken(rawKey))
	if err != nil {
		if db.IsNoRows(err) {
			return UserContext{}, apperr.Unauthorized("invalid api key")
		}
		return UserContext{}, fmt.Errorf("find api key: %w", err)
	}
	if err := s.store.TouchAPIKey(ctx, key.ID); err != nil {
		slog.Warn("api key touch failed", "apiKeyId", key.ID, "err", err)
	}
	return UserContext{RoleID: key.RoleID, RoleName: key.RoleName, APIKeyID: key.ID}, nil
}

// Permissions returns the permission keys of a role, served from the cache when possible.
func (s *Service) Permissions(ctx context.Context, roleID string) ([]string, error) {
	var perms []string
	found, err := s.cache.GetJSON(ctx, cache.RolePermissionsKey(roleID), &perms)
	if err != nil {
		slog.Warn("permission cache read failed", "roleId", roleID, "err", err)
	}
	if found {
		return perms, nil
	}
	perms, err = s.store.RolePermissions(ctx, roleID)
	if err != nil {
		return nil, fmt.Errorf("load role permissions: %w", err)
	}
	if err := s.cache.SetJSON(ctx, cache.RolePermissionsKey(roleID), perms, s.opts.CacheTTL); err != nil {
		slog.Warn("permission cache write failed", "roleId", roleID, "err", err)
	}
	return perms, nil
}

func (s *Service) HasPermission(ctx context.Context, roleID, permission string) (bool, error) {
	perms, err := s.Permissions(ctx, roleID)
	if err != nil {
		return false, err
	}
	return slices.Contains(perms, permission), nil
}

func (s *Service) InvalidateRole(ctx context.Context, roleID string) {
	if err := s.cache.Delete(ctx, cache.RolePermissionsKey(roleID)); err != nil {
		slog.Warn("permission cache invalidation failed", "roleId", roleID, "err", err)
	}
}

func (s *Service) Me(ctx context.Context, user UserContext) (Profile, error) {
	perms, err := s.Permissions(ctx, user.RoleID)
	if err != nil {
		return Profile{}, err
	}
	if user.UserID == "" {
		return Profile{RoleID: user.RoleID, Role: user.RoleName, Permissions: perms}, nil
	}
	profile, err := s.store.GetProfile(ctx, user.UserID)
	if err != nil {
		return Profile{}, err
	}
	profile.Permissions = perms
	return profile, nil
}

func (s *Service) SetupMFA(ctx context.Context, user UserContext) (MFASetup, error) {
	if !s.crypto.Configured() {
		return MFASetup{}, apperr.Validation("mfa requires encryption key")
	}
	account, err := s.store.FindActiveUserByID(ctx, user.UserID)
	if err != nil {
		return MFASetup{}, db.MapError(err, "user")
	}
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      mfaIssuer,
		AccountName: account.Email,
		Period:      30,
		Digits:      otp.DigitsSix,
	})
	if err != nil {
		return MFASetup{}, fmt.Errorf("generate mfa secret: %w", err)
	}
	encrypted, err := s.crypto.EncryptString(key.Secret())
	if err != nil {
		return MFASetup{}, fmt.Errorf("encrypt mfa secret: %w", err)
	}
	if err := s.store.UpdateMFASecret(ctx, user.UserID, encrypted); err != nil {
		return MFASetup{}, fmt.Errorf("store mfa secret: %w", err)
	}
	return MFASetup{Secret: key.Secret(), OTPAuthURL: key.URL()}, nil
}

func (s *Service) EnableMFA(ctx context.Context, userID, code string) error {
	return s.setMFA(ctx, userID, code, true)
}

func (s *Service) DisableMFA(ctx context.Context, userID, code string) error {
	return s.setMFA(ctx, userID, code, false)
}

func (s *Service) setMFA(ctx context.Context, userID, code string, enabled bool) error {
	if !s.crypto.Configured() {
		return apperr.Validation("mfa requires encryption key")
	}
	secretEnc, err := s.store.GetMFASecret(ctx, userID)
	if err != nil || len(secretEnc) == 0 {
		return apperr.Validation("mfa setup required")
	}
	secret, err := s.crypto.DecryptString(secretEnc)
	if err != nil {
		return apperr.Validation("invalid mfa secret")
	}
	if !totp.Validate(strings.TrimSpace(code), secret) {
		return apperr.Validation("invalid mfa code")
	}
	return s.store.SetMFAEnabled(ctx, userID, enabled)
}

// RequestPasswordReset never reports whether the address exists.
func (s *Service) RequestPasswordReset(ctx context.Context, emailAddr string) {
	user, err := s.store.FindActiveUserByEmail(ctx, strings.TrimSpace(emailAddr))
	if err != nil {
		if !db.IsNoRows(err) {
			slog.Warn("password reset lookup failed", "err", err)
		}
		return
	}
	token, err := cryptoutil.RandomToken(32)
	if err != nil {
		slog.Warn("password reset token generation failed", "userId", user.ID, "err", err)
		return
	}
	if err := s.store.CreatePasswordReset(ctx, user.ID, cryptoutil.HashToken(token), time.Now().Add(ResetTokenTTL)); err != nil {
		slog.Warn("password reset insert failed", "userId", user.ID, "err", err)
		return
	}
	msg := email.Message{
		From:    s.opts.EmailFrom,
		To:      user.Email,
		Subject: "Password reset",
		Body:    BuildResetEmailBody(BuildResetLink(s.opts.PublicBaseURL, token), ResetTokenTTL),
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		slog.Warn("password reset email failed", "userId", user.ID, "err", err)
	}
}

func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	if strings.TrimSpace(token) == "" {
		return apperr.Validation("invalid or expired token")
	}
	if err := ValidatePassword(newPassword); err != nil {
		return apperr.Wrap(apperr.CodeValidation, err.Error(), err)
	}
	hash, err := HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	_, err = s.store.ConsumePasswordReset(ctx, cryptoutil.HashToken(token), hash)
	return err
}

func (s *Service) CreateAPIKey(ctx context.Context, actor UserContext, in APIKeyInput) (IssuedAPIKey, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" || in.RoleID == "" {
		return IssuedAPIKey{}, apperr.Validation("name and roleId are required")
	}
	if in.ExpiresAt != nil && !in.ExpiresAt.After(time.Now()) {
		return IssuedAPIKey{}, apperr.Validation("expiresAt must be in the future")
	}
	prefix, err := cryptoutil.RandomToken(6)
	if err != nil {
		return IssuedAPIKey{}, err
	}
	secret, err := cryptoutil.RandomToken(32)
	if err != nil {
		return IssuedAPIKey{}, err
	}
	prefix = prefix[:8]
	raw := apiKeyPrefix + prefix + "_" + secret
	key, err := s.store.CreateAPIKey(ctx, in, prefix, cryptoutil.HashToken(raw), actor.UserID)
	if err != nil {
		return IssuedAPIKey{}, err
	}
	return IssuedAPIKey{APIKey: key, Key: raw}, nil
}

func (s *Service) ListAPIKeys(ctx context.Context) ([]APIKey, error) {
	return s.store.ListAPIKeys(ctx)
}

func (s *Service) RevokeAPIKey(ctx context.Context, id string) error {
	return s.store.RevokeAPIKey(ctx, id)
}

// PurgeExpired removes dead sessions and spent reset tokens.
func (s *Service) PurgeExpired(ctx context.Context) (any, error) {
	sessions, err := s.store.PurgeExpiredSessions(ctx)
	if err != nil {
		return nil, fmt.Errorf("purge sessions: %w", err)
	}
	resets, err := s.store.PurgeExpiredPasswordResets(ctx)
	if err != nil {
		return nil, fmt.Errorf("purge password resets: %w", err)
	}
	return map[string]int64{"sessions": sessions, "passwordResets": resets}, nil
}
