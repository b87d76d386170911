package notificationshandler

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backoffice/internal/domain/auth"
	"backoffice/internal/domain/notifications"
	"backoffice/internal/transport/http/handlers/handlertest"
)

type inbox struct {
	items    []notifications.Notification
	settings notifications.Settings
}

func (s *inbox) CreateNotification(_ context.Context, userID, ntype, title, body string) error {
	s.items = append(s.items, notifications.Notification{ID: uuid.NewString(), UserID: userID, Type: ntype, Title: title, Body: body})
	return nil
}

func (s *inbox) UserEmail(context.Context, string) (string, error) { return "", nil }

func (s *inbox) UserIDsByRole(context.Context, string) ([]string, error) { return nil, nil }

func (s *inbox) ListNotifications(_ context.Context, userID string, unreadOnly bool, _, _ int) ([]notifications.Notification, int, error) {
	out := []notifications.Notification{}
	for _, n := range s.items {
		if n.UserID != userID || (unreadOnly && n.ReadAt != nil) {
			continue
		}
		out = append(out, n)
	}
	return out, len(out), nil
}

func (s *inbox) MarkRead(_ context.Context, userID, id string) (bool, error) {
	for i := range s.items {
		if s.items[i].ID == id && s.items[i].UserID == userID {
			now := time.Now()
			s.items[i].ReadAt = &now
			return true, nil
		}
	}
	return false, nil
}

func (s *inbox) MarkAllRead(_ context.Context, userID string) (int64, error) {
	var n int64
	for i := range s.items {
		if s.items[i].UserID == userID && s.items[i].ReadAt == nil {
			now := time.Now()
			s.items[i].ReadAt = &now
			n++
		}
	}
	return n, nil
}

func (s *inbox) EmailSettings(context.Context) (notifications.Settings, error) {
	return s.settings, nil
}

func (s *inbox) UpdateSettings(_ context.Context, settings notifications.Settings) error {
	s.settings = settings
	return nil
}

const (
	aliceID = "7a4f7d1e-0f43-4c3e-9d59-8a51c2f1b001"
	bobID   = "7a4f7d1e-0f43-4c3e-9d59-8a51c2f1b002"
)

func newHandler(t *testing.T) (*Handler, *inbox, *handlertest.Recorder) {
	t.Helper()
	store := &inbox{}
	svc := notifications.New(store, nil, "")
	require.NoError(t, svc.Notify(context.Background(), aliceID, notifications.TypeTaskOverdue, "Task overdue", "Submit expenses"))
	require.NoError(t, svc.Notify(context.Background(), aliceID, notifications.TypeTaskOverdue, "Task overdue", "Book training"))
	require.NoError(t, svc.Notify(context.Background(), bobID, notifications.TypeTaskOverdue, "Task overdue", "Renew badge"))
	recorder := &handlertest.Recorder{}
	return NewHandler(svc, recorder, handlertest.Perms{}), store, recorder
}

func TestInboxIsPerUser(t *testing.T) {
	h, store, _ := newHandler(t)
	alice := handlertest.User(aliceID, auth.RoleEmployee)

	rec, env := handlertest.Do(t, h.RegisterRoutes, alice, http.MethodGet, "/notifications", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("X-Total-Count"))

	bobsID := store.items[2].ID
	rec, _ = handlertest.Do(t, h.RegisterRoutes, alice, http.MethodPost, "/notifications/"+bobsID+"/read", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = handlertest.Do(t, h.RegisterRoutes, alice, http.MethodPost, "/notifications/"+store.items[0].ID+"/read", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, env = handlertest.Do(t, h.RegisterRoutes, alice, http.MethodGet, "/notifications?unread=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var unread []notifications.Notification
	handlertest.Decode(t, env, &unread)
	require.Len(t, unread, 1)
	assert.Equal(t, "Book training", unread[0].Body)

	rec, env = handlertest.Do(t, h.RegisterRoutes, alice, http.MethodPost, "/notifications/read-all", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var result map[string]int64
	handlertest.Decode(t, env, &result)
	assert.Equal(t, int64(1), result["updated"])
	assert.Nil(t, store.items[2].ReadAt)
}

func TestInboxRejectsAPIKeys(t *testing.T) {
	h, _, _ := newHandler(t)
	apiKey := auth.UserContext{RoleID: auth.RoleAdmin, RoleName: auth.RoleAdmin, APIKeyID: "key-1"}
	rec, _ := handlertest.Do(t, h.RegisterRoutes, apiKey, http.MethodGet, "/notifications", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSettingsNeedAdmin(t *testing.T) {
	h, store, recorder := newHandler(t)

	rec, _ := handlertest.Do(t, h.RegisterRoutes, handlertest.User(bobID, auth.RoleHR), http.MethodGet, "/notifications/settings", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	admin := handlertest.User(aliceID, auth.RoleAdmin)
	rec, env := handlertest.Do(t, h.RegisterRoutes, admin, http.MethodPut, "/notifications/settings", map[string]any{
		"emailEnabled": true,
		"emailFrom":    "not-an-address",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "validation_error", env.Error.Code)

	rec, _ = handlertest.Do(t, h.RegisterRoutes, admin, http.MethodPut, "/notifications/settings", map[string]any{
		"emailEnabled": true,
		"emailFrom":    "hr@example.com",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, notifications.Settings{EmailEnabled: true, EmailFrom: "hr@example.com"}, store.settings)
	assert.Equal(t, []string{"notifications.settings.update"}, recorder.Actions())
}
