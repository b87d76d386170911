package notifications

import (
	"context"
	"log/slog"
	"net/mail"
	"strings"

	"backoffice/internal/platform/apperr"
	"backoffice/internal/platform/email"
)

// Notifier is the slice of the service other domains depend on.
type Notifier interface {
	Notify(ctx context.Context, userID, ntype, title, body string) error
	NotifyRole(ctx context.Context, roleName, excludeUserID, ntype, title, body string) error
}

type Service struct {
	store       StoreAPI
	Mailer      email.Mailer
	DefaultFrom string
}

func New(store StoreAPI, mailer email.Mailer, defaultFrom string) *Service {
	if defaultFrom == "" {
		defaultFrom = "no-reply@example.com"
	}
	return &Service{store: store, Mailer: mailer, DefaultFrom: defaultFrom}
}

// Notify stores an in-app notification and, when enabled, mirrors it by
// email. Email failures are logged and never fail the call.
func (s *Service) Notify(ctx context.Context, userID, ntype, title, body string) error {
	if userID == "" {
		return nil
	}
	if err := s.store.CreateNotification(ctx, userID, ntype, title, body); err != nil {
		return err
	}

	if s.Mailer == nil {
		return nil
	}
	settings, err := s.store.EmailSettings(ctx)
	if err != nil {
		slog.Warn("notification settings lookup failed", "err", err)
		return nil
	}
	if !settings.EmailEnabled {
		return nil
	}
	from := settings.EmailFrom
	if from == "" {
		from = s.DefaultFrom
	}

	to, err := s.store.UserEmail(ctx, userID)
	if err != nil {
		slog.Warn("notification email lookup failed", "err", err, "userId", userID)
		return nil
	}
	if to == "" {
		return nil
	}
	if err := s.Mailer.Send(ctx, email.Message{From: from, To: to, Subject: title, Body: body}); err != nil {
		slog.Warn("notification email send failed", "err", err, "userId", userID)
	}
	return nil
}

// NotifyRole notifies every active holder of roleName except excludeUserID.
func (s *Service) NotifyRole(ctx context.Context, roleName, excludeUserID, ntype, title, body string) error {
	userIDs, err := s.store.UserIDsByRole(ctx, roleName)
	if err != nil {
		return err
	}
	for _, id := range userIDs {
		if id == excludeUserID {
			continue
		}
		if err := s.Notify(ctx, id, ntype, title, body); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) List(ctx context.Context, userID string, unreadOnly bool, limit, offset int) ([]Notification, int, error) {
	return s.store.ListNotifications(ctx, userID, unreadOnly, limit, offset)
}

func (s *Service) MarkRead(ctx context.Context, userID, notificationID string) error {
	found, err := s.store.MarkRead(ctx, userID, notificationID)
	if err != nil {
		return err
	}
	if !found {
		return apperr.NotFound("notification not found")
	}
	return nil
}

func (s *Service) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	return s.store.MarkAllRead(ctx, userID)
}

func (s *Service) GetSettings(ctx context.Context) (Settings, error) {
	return s.store.EmailSettings(ctx)
}

func (s *Service) UpdateSettings(ctx context.Context, settings Settings) (Settings, error) {
	settings.EmailFrom = strings.TrimSpace(settings.EmailFrom)
	if settings.EmailFrom != "" {
		if _, err := mail.ParseAddress(settings.EmailFrom); err != nil {
			return Settings{}, apperr.Validation("emailFrom must be a valid email address")
		}
	}
	if err := s.store.UpdateSettings(ctx, settings); err != nil {
		return Settings{}, err
	}
	return settings, nil
}
