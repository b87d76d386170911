package certifications

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"backoffice/internal/domain/notifications"
	"backoffice/internal/platform/apperr"
	"backoffice/internal/platform/db"
	"backoffice/internal/platform/storage"
)

const (
	objectPrefix = "certifications"
	linkExpiry   = 15 * time.Minute
)

type Service struct {
	store          StoreAPI
	files          storage.Storage
	notifier       notifications.Notifier
	maxUploadBytes int64
	reminderDays   int
	now            func() time.Time
}

func NewService(store StoreAPI, files storage.Storage, notifier notifications.Notifier, maxUploadBytes int64, reminderDays int) *Service {
	return &Service{
		store:          store,
		files:          files,
		notifier:       notifier,
		maxUploadBytes: maxUploadBytes,
		reminderDays:   reminderDays,
		now:            time.Now,
	}
}

func (s *Service) List(ctx context.Context, filter Filter, limit, offset int) ([]Certification, int, error) {
	return s.store.List(ctx, filter, limit, offset)
}

func (s *Service) Get(ctx context.Context, id string) (Certification, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, actorID string, in Input) (Certification, error) {
	in, err := normalize(in)
	if err != nil {
		return Certification{}, err
	}
	if err := s.checkRefs(ctx, in); err != nil {
		return Certification{}, err
	}
	return s.store.Create(ctx, in, actorID)
}

func (s *Service) Update(ctx context.Context, actorID, id string, version int, in Input) (Certification, error) {
	in, err := normalize(in)
	if err != nil {
		return Certification{}, err
	}
	if err := s.checkRefs(ctx, in); err != nil {
		return Certification{}, err
	}
	return s.store.Update(ctx, id, version, in, actorID)
}

func (s *Service) Delete(ctx context.Context, actorID, id string, version int) error {
	return s.store.Delete(ctx, id, version, actorID)
}

// Upload stores a new attachment and replaces the previous one. The old
// object is removed only after the record points at the new one.
func (s *Service) Upload(ctx context.Context, actorID, id string, version int, fileName string, r io.Reader) (Certification, error) {
	current, err := s.store.Get(ctx, id)
	if err != nil {
		return Certification{}, err
	}
	if current.Version != version {
		return Certification{}, apperr.VersionConflict(entity)
	}
	att, err := storage.SaveUpload(ctx, s.files, objectPrefix, id, fileName, r, s.maxUploadBytes)
	if err != nil {
		return Certification{}, err
	}
	updated, err := s.store.SetAttachment(ctx, id, version, att, actorID)
	if err != nil {
		if delErr := s.files.Delete(ctx, att.Key); delErr != nil {
			slog.Warn("remove orphaned certification file failed", "err", delErr, "key", att.Key)
		}
		return Certification{}, err
	}
	if current.Attachment != nil {
		if err := s.files.Delete(ctx, current.Attachment.Key); err != nil {
			slog.Warn("remove replaced certification file failed", "err", err, "key", current.Attachment.Key)
		}
	}
	return updated, nil
}

// DownloadURL returns a short-lived link to the attachment.
func (s *Service) DownloadURL(ctx context.Context, id string) (string, storage.Attachment, error) {
	c, err := s.store.Get(ctx, id)
	if err != nil {
		return "", storage.Attachment{}, err
	}
	if c.Attachment == nil {
		return "", storage.Attachment{}, apperr.NotFound("certification has no attachment")
	}
	link, err := s.files.PresignGet(ctx, c.Attachment.Key, linkExpiry)
	if err != nil {
		return "", storage.Attachment{}, err
	}
	return link, *c.Attachment, nil
}

// RemindExpiring notifies the owners of certifications expiring within the
// reminder window. Each certification is reminded once.
func (s *Service) RemindExpiring(ctx context.Context) (any, error) {
	now := s.now().UTC()
	cutoff := now.AddDate(0, 0, s.reminderDays)
	items, err := s.store.ExpiringBefore(ctx, cutoff)
	if err != nil {
		return nil, err
	}
	notified, skipped := 0, 0
	for _, item := range items {
		if item.UserID == "" || s.notifier == nil {
			skipped++
		} else {
			body := fmt.Sprintf("Certification %q for %s expires on %s.", item.Name, item.EmployeeName, item.ExpiryDate.Format(time.DateOnly))
			if err := s.notifier.Notify(ctx, item.UserID, notifications.TypeCertificationExpiring, "Certification expiring soon", body); err != nil {
				slog.Warn("certification reminder failed", "err", err, "certificationId", item.ID)
				continue
			}
			notified++
		}
		if err := s.store.MarkReminded(ctx, item.ID, now); err != nil {
			return nil, fmt.Errorf("mark certification %s reminded: %w", item.ID, err)
		}
	}
	return map[string]any{"candidates": len(items), "notified": notified, "skipped": skipped, "withinDays": s.reminderDays}, nil
}

func (s *Service) checkRefs(ctx context.Context, in Input) error {
	return db.CheckRefs(ctx, s.store, db.EmployeeRef("employeeId", in.EmployeeID))
}

func normalize(in Input) (Input, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Issuer = strings.TrimSpace(in.Issuer)
	in.CredentialID = strings.TrimSpace(in.CredentialID)
	if in.Name == "" {
		return in, apperr.Validation("name is required")
	}
	if in.ExpiryDate != nil && in.ExpiryDate.Before(in.IssueDate) {
		return in, apperr.Validation("expiryDate must be on or after issueDate")
	}
	return in, nil
}
