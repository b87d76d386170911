package auth

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jackc/pgx/v5"
	"github.com/pquerna/otp/totp"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backoffice/internal/platform/apperr"
	"backoffice/internal/platform/cache"
	cryptoutil "backoffice/internal/platform/crypto"
	"backoffice/internal/platform/email"
)

const testSecret = "test-secret-with-enough-length-000"

type fakeStore struct {
	mu            sync.Mutex
	users         map[string]AuthUser
	sessions      map[string]time.Time
	resets        map[string]string
	rolePerms     map[string][]string
	rolePermReads int
	apiKeys       map[string]APIKey
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:     map[string]AuthUser{},
		sessions:  map[string]time.Time{},
		resets:    map[string]string{},
		rolePerms: map[string][]string{"role-hr": {PermEmployeesRead, PermEmployeesWrite}},
		apiKeys:   map[string]APIKey{},
	}
}

func (f *fakeStore) addUser(t *testing.T, id, mail, password string) AuthUser {
	t.Helper()
	hash, err := HashPassword(password)
	require.NoError(t, err)
	user := AuthUser{ID: id, Email: mail, RoleID: "role-hr", RoleName: RoleHR, PasswordHash: hash}
	f.users[id] = user
	return user
}

func (f *fakeStore) FindActiveUserByEmail(_ context.Context, mail string) (AuthUser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if strings.EqualFold(u.Email, mail) {
			return u, nil
		}
	}
	return AuthUser{}, pgx.ErrNoRows
}

func (f *fakeStore) FindActiveUserByID(_ context.Context, id string) (AuthUser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return AuthUser{}, pgx.ErrNoRows
	}
	return u, nil
}

func (f *fakeStore) GetProfile(_ context.Context, id string) (Profile, error) {
	u, ok := f.users[id]
	if !ok {
		return Profile{}, apperr.NotFound("user not found")
	}
	return Profile{ID: u.ID, Email: u.Email, RoleID: u.RoleID, Role: u.RoleName, MFAEnabled: u.MFAEnabled}, nil
}

func (f *fakeStore) UpdateLastLogin(context.Context, string) error { return nil }

func (f *fakeStore) CreateSession(_ context.Context, userID, hash string, expires time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[userID+"|"+hash] = expires
	return nil
}

func (f *fakeStore) SessionValid(_ context.Context, userID, hash string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	exp, ok := f.sessions[userID+"|"+hash]
	return ok && exp.After(time.Now()), nil
}

func (f *fakeStore) RotateSession(_ context.Context, userID, oldHash, newHash string, expires time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.sessions[userID+"|"+oldHash]; !ok {
		return false, nil
	}
	delete(f.sessions, userID+"|"+oldHash)
	f.sessions[userID+"|"+newHash] = expires
	return true, nil
}

func (f *fakeStore) RevokeSession(_ context.Context, userID, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sessions, userID+"|"+hash)
	return nil
}

func (f *fakeStore) PurgeExpiredSessions(context.Context) (int64, error)       { return 2, nil }
func (f *fakeStore) PurgeExpiredPasswordResets(context.Context) (int64, error) { return 1, nil }

func (f *fakeStore) UpdateMFASecret(_ context.Context, userID string, secretEnc []byte) error {
	u := f.users[userID]
	u.MFASecretEnc = secretEnc
	u.MFAEnabled = false
	f.users[userID] = u
	return nil
}

func (f *fakeStore) GetMFASecret(_ context.Context, userID string) ([]byte, error) {
	return f.users[userID].MFASecretEnc, nil
}

func (f *fakeStore) SetMFAEnabled(_ context.Context, userID string, enabled bool) error {
	u := f.users[userID]
	u.MFAEnabled = enabled
	f.users[userID] = u
	return nil
}

func (f *fakeStore) CreatePasswordReset(_ context.Context, userID, tokenHash string, _ time.Time) error {
	f.resets[tokenHash] = userID
	return nil
}

func (f *fakeStore) ConsumePasswordReset(_ context.Context, tokenHash, passwordHash string) (string, error) {
	userID, ok := f.resets[tokenHash]
	if !ok {
		return "", apperr.Validation("invalid or expired token")
	}
	delete(f.resets, tokenHash)
	u := f.users[userID]
	u.PasswordHash = passwordHash
	f.users[userID] = u
	return userID, nil
}

func (f *fakeStore) RolePermissions(_ context.Context, roleID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rolePermReads++
	return f.rolePerms[roleID], nil
}

func (f *fakeStore) CreateAPIKey(_ context.Context, in APIKeyInput, prefix, keyHash, createdBy string) (APIKey, error) {
	key := APIKey{ID: "key-" + prefix, Name: in.Name, Prefix: prefix, RoleID: in.RoleID, RoleName: RoleHR, ExpiresAt: in.ExpiresAt, CreatedBy: createdBy}
	f.apiKeys[keyHash] = key
	return key, nil
}

func (f *fakeStore) ListAPIKeys(context.Context) ([]APIKey, error) {
	out := []APIKey{}
	for _, key := range f.apiKeys {
		out = append(out, key)
	}
	return out, nil
}

func (f *fakeStore) FindAPIKeyByHash(_ context.Context, keyHash string) (APIKey, error) {
	key, ok := f.apiKeys[keyHash]
	if !ok || key.RevokedAt != nil {
		return APIKey{}, pgx.ErrNoRows
	}
	return key, nil
}

func (f *fakeStore) TouchAPIKey(context.Context, string) error { return nil }

func (f *fakeStore) RevokeAPIKey(_ context.Context, id string) error {
	for hash, key := range f.apiKeys {
		if key.ID == id {
			now := time.Now()
			key.RevokedAt = &now
			f.apiKeys[hash] = key
			return nil
		}
	}
	return apperr.NotFound("api key not found")
}

type recordingMailer struct {
	sent []email.Message
}

func (m *recordingMailer) Send(_ context.Context, msg email.Message) error {
	m.sent = append(m.sent, msg)
	return nil
}

func newTestService(t *testing.T, store *fakeStore, c cache.Cache) (*Service, *recordingMailer) {
	t.Helper()
	crypto, err := cryptoutil.New("0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef")
	require.NoError(t, err)
	mailer := &recordingMailer{}
	return NewService(store, crypto, c, mailer, Options{Secret: testSecret, TokenTTL: time.Hour, PublicBaseURL: "https://hr.example.com"}), mailer
}

func TestLoginIssuesSessionBoundToken(t *testing.T) {
	store := newFakeStore()
	store.addUser(t, "u1", "hr@example.com", "Passw0rdOK")
	svc, _ := newTestService(t, store, nil)

	result, err := svc.Login(context.Background(), "HR@example.com", "Passw0rdOK", "")
	require.NoError(t, err)
	assert.NotEmpty(t, result.Token)
	assert.Equal(t, []string{PermEmployeesRead, PermEmployeesWrite}, result.User.Permissions)

	user, err := svc.Authenticate(context.Background(), result.Token)
	require.NoError(t, err)
	assert.Equal(t, "u1", user.UserID)
	assert.Equal(t, RoleHR, user.RoleName)

	require.NoError(t, svc.Logout(context.Background(), user))
	_, err = svc.Authenticate(context.Background(), result.Token)
	assert.True(t, apperr.Is(err, apperr.CodeUnauthorized))
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	store := newFakeStore()
	store.addUser(t, "u1", "hr@example.com", "Passw0rdOK")
	svc, _ := newTestService(t, store, nil)

	_, err := svc.Login(context.Background(), "hr@example.com", "wrong", "")
	assert.True(t, apperr.Is(err, apperr.CodeUnauthorized))
	_, err = svc.Login(context.Background(), "nobody@example.com", "Passw0rdOK", "")
	assert.True(t, apperr.Is(err, apperr.CodeUnauthorized))
}

func TestMFAFlow(t *testing.T) {
	store := newFakeStore()
	store.addUser(t, "u1", "hr@example.com", "Passw0rdOK")
	svc, _ := newTestService(t, store, nil)
	ctx := context.Background()

	setup, err := svc.SetupMFA(ctx, UserContext{UserID: "u1"})
	require.NoError(t, err)
	assert.Contains(t, setup.OTPAuthURL, "otpauth://")

	assert.True(t, apperr.Is(svc.EnableMFA(ctx, "u1", "000000"), apperr.CodeValidation))
	code, err := totp.GenerateCode(setup.Secret, time.Now())
	require.NoError(t, err)
	require.NoError(t, svc.EnableMFA(ctx, "u1", code))

	_, err = svc.Login(ctx, "hr@example.com", "Passw0rdOK", "")
	require.Error(t, err)
	assert.Equal(t, "mfa code required", apperr.Message(err))

	_, err = svc.Login(ctx, "hr@example.com", "Passw0rdOK", code)
	assert.NoError(t, err)
}

func TestRefreshRotatesSession(t *testing.T) {
	store := newFakeStore()
	store.addUser(t, "u1", "hr@example.com", "Passw0rdOK")
	svc, _ := newTestService(t, store, nil)
	ctx := context.Background()

	first, err := svc.Login(ctx, "hr@example.com", "Passw0rdOK", "")
	require.NoError(t, err)
	second, err := svc.Refresh(ctx, first.Token)
	require.NoError(t, err)

	_, err = svc.Authenticate(ctx, first.Token)
	assert.Error(t, err, "old session must be rotated out")
	_, err = svc.Authenticate(ctx, second.Token)
	assert.NoError(t, err)

	_, err = svc.Refresh(ctx, first.Token)
	assert.True(t, apperr.Is(err, apperr.CodeUnauthorized))
}

func TestPasswordResetFlow(t *testing.T) {
	store := newFakeStore()
	store.addUser(t, "u1", "hr@example.com", "Passw0rdOK")
	svc, mailer := newTestService(t, store, nil)
	ctx := context.Background()

	svc.RequestPasswordReset(ctx, "unknown@example.com")
	assert.Empty(t, mailer.sent)

	svc.RequestPasswordReset(ctx, "hr@example.com")
	require.Len(t, mailer.sent, 1)
	body := mailer.sent[0].Body
	idx := strings.Index(body, "token=")
	require.GreaterOrEqual(t, idx, 0)
	token := strings.Fields(body[idx+len("token="):])[0]

	err := svc.ResetPassword(ctx, token, "weak")
	assert.True(t, apperr.Is(err, apperr.CodeValidation))
	require.NoError(t, svc.ResetPassword(ctx, token, "NewPassw0rd"))
	assert.True(t, apperr.Is(svc.ResetPassword(ctx, token, "NewPassw0rd"), apperr.CodeValidation))

	_, err = svc.Login(ctx, "hr@example.com", "NewPassw0rd", "")
	assert.NoError(t, err)
}

func TestAPIKeyLifecycle(t *testing.T) {
	store := newFakeStore()
	svc, _ := newTestService(t, store, nil)
	ctx := context.Background()

	_, err := svc.CreateAPIKey(ctx, UserContext{UserID: "admin"}, APIKeyInput{Name: " "})
	assert.True(t, apperr.Is(err, apperr.CodeValidation))
	past := time.Now().Add(-time.Hour)
	_, err = svc.CreateAPIKey(ctx, UserContext{UserID: "admin"}, APIKeyInput{Name: "etl", RoleID: "role-hr", ExpiresAt: &past})
	assert.True(t, apperr.Is(err, apperr.CodeValidation))

	issued, err := svc.CreateAPIKey(ctx, UserContext{UserID: "admin"}, APIKeyInput{Name: "etl", RoleID: "role-hr"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(issued.Key, "bo_"+issued.Prefix+"_"))

	principal, err := svc.AuthenticateAPIKey(ctx, issued.Key)
	require.NoError(t, err)
	assert.Equal(t, issued.ID, principal.APIKeyID)
	assert.Equal(t, "apikey:"+issued.ID, principal.ActorID())

	require.NoError(t, svc.RevokeAPIKey(ctx, issued.ID))
	_, err = svc.AuthenticateAPIKey(ctx, issued.Key)
	assert.True(t, apperr.Is(err, apperr.CodeUnauthorized))
	_, err = svc.AuthenticateAPIKey(ctx, "not-a-key")
	assert.True(t, apperr.Is(err, apperr.CodeUnauthorized))
}

func TestPermissionsAreCached(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := newFakeStore()
	svc, _ := newTestService(t, store, cache.NewRedis(client))
	ctx := context.Background()

	for range 3 {
		ok, err := svc.HasPermission(ctx, "role-hr", PermEmployeesWrite)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	assert.Equal(t, 1, store.rolePermReads)

	svc.InvalidateRole(ctx, "role-hr")
	ok, err := svc.HasPermission(ctx, "role-hr", PermAuditRead)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 2, store.rolePermReads)
}

func TestPurgeExpired(t *testing.T) {
	svc, _ := newTestService(t, newFakeStore(), nil)
	details, err := svc.PurgeExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"sessions": 2, "passwordResets": 1}, details)
}
