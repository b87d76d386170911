package documents

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"time"

	"backoffice/internal/domain/notifications"
	"backoffice/internal/platform/apperr"
	"backoffice/internal/platform/db"
	"backoffice/internal/platform/storage"
)

const (
	objectPrefix = "documents"
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

func (s *Service) List(ctx context.Context, filter Filter, limit, offset int) ([]Document, int, error) {
	return s.store.List(ctx, filter, limit, offset)
}

func (s *Service) Get(ctx context.Context, id string) (Document, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, actorID string, in Input) (Document, error) {
	in, err := normalize(in)
	if err != nil {
		return Document{}, err
	}
	if err := s.checkRefs(ctx, in); err != nil {
		return Document{}, err
	}
	return s.store.Create(ctx, in, actorID)
}

func (s *Service) Update(ctx context.Context, actorID, id string, version int, in Input) (Document, error) {
	in, err := normalize(in)
	if err != nil {
		return Document{}, err
	}
	if err := s.checkRefs(ctx, in); err != nil {
		return Document{}, err
	}
	return s.store.Update(ctx, id, version, in, actorID)
}

func (s *Service) Delete(ctx context.Context, actorID, id string, version int) error {
	return s.store.Delete(ctx, id, version, actorID)
}

func (s *Service) UploadFile(ctx context.Context, actorID, id string, version int, fileName string, r io.Reader) (Document, error) {
	current, err := s.store.Get(ctx, id)
	if err != nil {
		return Document{}, err
	}
	if current.Version != version {
		return Document{}, apperr.VersionConflict(entity)
	}
	att, err := storage.SaveUpload(ctx, s.files, objectPrefix, id, fileName, r, s.maxUploadBytes)
	if err != nil {
		return Document{}, err
	}
	updated, err := s.store.SetFile(ctx, id, version, att, actorID)
	if err != nil {
		if delErr := s.files.Delete(ctx, att.Key); delErr != nil {
			slog.Warn("remove orphaned document file failed", "err", delErr, "key", att.Key)
		}
		return Document{}, err
	}
	if current.File != nil {
		if err := s.files.Delete(ctx, current.File.Key); err != nil {
			slog.Warn("remove replaced document file failed", "err", err, "key", current.File.Key)
		}
	}
	return updated, nil
}

func (s *Service) DownloadURL(ctx context.Context, id string) (string, storage.Attachment, error) {
	d, err := s.store.Get(ctx, id)
	if err != nil {
		return "", storage.Attachment{}, err
	}
	if d.File == nil {
		return "", storage.Attachment{}, apperr.NotFound("identity document has no file")
	}
	link, err := s.files.PresignGet(ctx, d.File.Key, linkExpiry)
	if err != nil {
		return "", storage.Attachment{}, err
	}
	return link, *d.File, nil
}

// RemindExpiring notifies employees whose identity documents expire within
// the reminder window.
func (s *Service) RemindExpiring(ctx context.Context) (any, error) {
	now := s.now().UTC()
	items, err := s.store.ExpiringBefore(ctx, now.AddDate(0, 0, s.reminderDays))
	if err != nil {
		return nil, err
	}
	notified, skipped := 0, 0
	for _, item := range items {
		if item.UserID == "" || s.notifier == nil {
			skipped++
		} else {
			label := strings.ReplaceAll(item.DocumentType, "_", " ")
			body := fmt.Sprintf("The %s on file for %s expires on %s.", label, item.EmployeeName, item.ExpiryDate.Format(time.DateOnly))
			if err := s.notifier.Notify(ctx, item.UserID, notifications.TypeDocumentExpiring, "Identity document expiring soon", body); err != nil {
				slog.Warn("document reminder failed", "err", err, "documentId", item.ID)
				continue
			}
			notified++
		}
		if err := s.store.MarkReminded(ctx, item.ID, now); err != nil {
			return nil, fmt.Errorf("mark document %s reminded: %w", item.ID, err)
		}
	}
	return map[string]any{"candidates": len(items), "notified": notified, "skipped": skipped, "withinDays": s.reminderDays}, nil
}

func (s *Service) checkRefs(ctx context.Context, in Input) error {
	return db.CheckRefs(ctx, s.store, db.EmployeeRef("employeeId", in.EmployeeID))
}

func normalize(in Input) (Input, error) {
	in.DocumentType = strings.ToLower(strings.TrimSpace(in.DocumentType))
	in.DocumentNumber = strings.ToUpper(strings.TrimSpace(in.DocumentNumber))
	in.IssuingCountry = strings.ToUpper(strings.TrimSpace(in.IssuingCountry))
	if !slices.Contains(Types, in.DocumentType) {
		return in, apperr.Validation("documentType must be one of: " + strings.Join(Types, ", "))
	}
	if in.DocumentNumber == "" {
		return in, apperr.Validation("documentNumber is required")
	}
	if len(in.IssuingCountry) != 2 {
		return in, apperr.Validation("issuingCountry must be a two-letter country code")
	}
	if in.IssueDate != nil && in.ExpiryDate != nil && in.ExpiryDate.Before(*in.IssueDate) {
		return in, apperr.Validation("expiryDate must be on or after issueDate")
	}
	return in, nil
}
