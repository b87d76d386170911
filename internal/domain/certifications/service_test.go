package certifications

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backoffice/internal/platform/apperr"
	"backoffice/internal/platform/db"
	"backoffice/internal/platform/storage"
)

type memoryStore struct {
	mu       sync.Mutex
	items    map[string]Certification
	userIDs  map[string]string
	reminded map[string]time.Time
	seq      int
	deleted  map[string]bool
}

func (m *memoryStore) MissingRef(_ context.Context, refs ...db.Ref) (string, error) {
	for _, ref := range refs {
		if m.deleted[ref.ID] {
			return ref.Field, nil
		}
	}
	return "", nil
}

func newMemoryStore() *memoryStore {
	return &memoryStore{items: map[string]Certification{}, userIDs: map[string]string{}, reminded: map[string]time.Time{}, deleted: map[string]bool{}}
}

func (m *memoryStore) List(context.Context, Filter, int, int) ([]Certification, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Certification, 0, len(m.items))
	for _, c := range m.items {
		out = append(out, c)
	}
	return out, len(out), nil
}

func (m *memoryStore) Get(_ context.Context, id string) (Certification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.items[id]
	if !ok {
		return Certification{}, apperr.NotFound("certification not found")
	}
	return c, nil
}

func (m *memoryStore) Create(_ context.Context, in Input, _ string) (Certification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	c := Certification{
		ID: "cert-" + strconv.Itoa(m.seq), EmployeeID: in.EmployeeID, EmployeeName: "Grace Hopper",
		Name: in.Name, Issuer: in.Issuer, IssueDate: in.IssueDate, ExpiryDate: in.ExpiryDate, Version: 1,
	}
	m.items[c.ID] = c
	return c, nil
}

func (m *memoryStore) bump(id string, version int, fn func(*Certification)) (Certification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.items[id]
	if !ok {
		return Certification{}, apperr.NotFound("certification not found")
	}
	if c.Version != version {
		return Certification{}, apperr.VersionConflict(entity)
	}
	fn(&c)
	c.Version++
	m.items[id] = c
	return c, nil
}

func (m *memoryStore) Update(_ context.Context, id string, version int, in Input, _ string) (Certification, error) {
	return m.bump(id, version, func(c *Certification) {
		c.Name = in.Name
		c.ExpiryDate = in.ExpiryDate
	})
}

func (m *memoryStore) Delete(_ context.Context, id string, version int, _ string) error {
	_, err := m.bump(id, version, func(*Certification) {})
	if err == nil {
		m.mu.Lock()
		delete(m.items, id)
		m.mu.Unlock()
	}
	return err
}

func (m *memoryStore) SetAttachment(_ context.Context, id string, version int, att storage.Attachment, _ string) (Certification, error) {
	return m.bump(id, version, func(c *Certification) {
		copied := att
		c.Attachment = &copied
	})
}

func (m *memoryStore) ExpiringBefore(_ context.Context, cutoff time.Time) ([]Expiring, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Expiring
	for _, c := range m.items {
		if c.ExpiryDate == nil || c.ExpiryDate.After(cutoff) {
			continue
		}
		if _, done := m.reminded[c.ID]; done {
			continue
		}
		out = append(out, Expiring{ID: c.ID, Name: c.Name, EmployeeName: c.EmployeeName, UserID: m.userIDs[c.EmployeeID], ExpiryDate: *c.ExpiryDate})
	}
	return out, nil
}

func (m *memoryStore) MarkReminded(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	m.reminded[id] = at
	m.mu.Unlock()
	return nil
}

type recordingNotifier struct {
	users []string
	types []string
}

func (r *recordingNotifier) Notify(_ context.Context, userID, ntype, _, _ string) error {
	r.users = append(r.users, userID)
	r.types = append(r.types, ntype)
	return nil
}

func (r *recordingNotifier) NotifyRole(context.Context, string, string, string, string, string) error {
	return nil
}

var today = time.Date(2025, 6, 1, 6, 0, 0, 0, time.UTC)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func newTestService(files storage.Storage) (*Service, *memoryStore, *recordingNotifier) {
	store := newMemoryStore()
	notifier := &recordingNotifier{}
	svc := NewService(store, files, notifier, 1024, 30)
	svc.now = func() time.Time { return today }
	return svc, store, notifier
}

func TestCreateValidates(t *testing.T) {
	svc, _, _ := newTestService(storage.NewMemory())
	ctx := context.Background()

	_, err := svc.Create(ctx, "u1", Input{EmployeeID: "e1", Name: "  ", IssueDate: date(2024, 1, 1)})
	assert.True(t, apperr.Is(err, apperr.CodeValidation))

	expiry := date(2023, 1, 1)
	_, err = svc.Create(ctx, "u1", Input{EmployeeID: "e1", Name: "CKA", IssueDate: date(2024, 1, 1), ExpiryDate: &expiry})
	assert.True(t, apperr.Is(err, apperr.CodeValidation))

	c, err := svc.Create(ctx, "u1", Input{EmployeeID: "e1", Name: " CKA ", IssueDate: date(2024, 1, 1)})
	require.NoError(t, err)
	assert.Equal(t, "CKA", c.Name)
	assert.Equal(t, 1, c.Version)
}

func TestCreateForDeletedEmployee(t *testing.T) {
	svc, store, _ := newTestService(storage.NewMemory())
	store.deleted["e-left"] = true

	_, err := svc.Create(context.Background(), "u1", Input{EmployeeID: "e-left", Name: "CKA", IssueDate: date(2024, 1, 1)})
	require.True(t, apperr.Is(err, apperr.CodeValidation))
	assert.Equal(t, "employeeId does not exist", apperr.Message(err))
	assert.Empty(t, store.items)
}

func TestUploadReplacesAttachment(t *testing.T) {
	files := storage.NewMemory()
	svc, _, _ := newTestService(files)
	ctx := context.Background()

	c, err := svc.Create(ctx, "u1", Input{EmployeeID: "e1", Name: "CKA", IssueDate: date(2024, 1, 1)})
	require.NoError(t, err)

	_, err = svc.Upload(ctx, "u1", c.ID, c.Version+1, "cert.pdf", strings.NewReader("%PDF-1.4"))
	assert.True(t, apperr.Is(err, apperr.CodeVersionConflict))

	first, err := svc.Upload(ctx, "u1", c.ID, c.Version, "cert.pdf", strings.NewReader("%PDF-1.4"))
	require.NoError(t, err)
	require.NotNil(t, first.Attachment)
	oldKey := first.Attachment.Key
	assert.True(t, files.Has(oldKey))

	second, err := svc.Upload(ctx, "u1", c.ID, first.Version, "scan.png", strings.NewReader("\x89PNG\r\n\x1a\n\x00\x00"))
	require.NoError(t, err)
	assert.Equal(t, "image/png", second.Attachment.ContentType)
	assert.False(t, files.Has(oldKey))

	link, att, err := svc.DownloadURL(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "scan.png", att.FileName)
	assert.Equal(t, "memory://"+second.Attachment.Key, link)
}

func TestUploadWithoutStorage(t *testing.T) {
	svc, _, _ := newTestService(storage.Disabled{})
	ctx := context.Background()

	c, err := svc.Create(ctx, "u1", Input{EmployeeID: "e1", Name: "CKA", IssueDate: date(2024, 1, 1)})
	require.NoError(t, err)
	_, err = svc.Upload(ctx, "u1", c.ID, c.Version, "cert.pdf", strings.NewReader("%PDF-1.4"))
	assert.True(t, apperr.Is(err, apperr.CodeStorage))

	_, _, err = svc.DownloadURL(ctx, c.ID)
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))
}

func TestRemindExpiringOnce(t *testing.T) {
	svc, store, notifier := newTestService(storage.NewMemory())
	ctx := context.Background()
	store.userIDs["e1"] = "user-1"

	soon := date(2025, 6, 20)
	later := date(2025, 12, 1)
	_, err := svc.Create(ctx, "u1", Input{EmployeeID: "e1", Name: "CKA", IssueDate: date(2024, 1, 1), ExpiryDate: &soon})
	require.NoError(t, err)
	_, err = svc.Create(ctx, "u1", Input{EmployeeID: "e1", Name: "PMP", IssueDate: date(2024, 1, 1), ExpiryDate: &later})
	require.NoError(t, err)
	_, err = svc.Create(ctx, "u1", Input{EmployeeID: "e2", Name: "ITIL", IssueDate: date(2024, 1, 1), ExpiryDate: &soon})
	require.NoError(t, err)

	details, err := svc.RemindExpiring(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"candidates": 2, "notified": 1, "skipped": 1, "withinDays": 30}, details)
	assert.Equal(t, []string{"user-1"}, notifier.users)
	assert.Equal(t, []string{"certification_expiring"}, notifier.types)

	details, err = svc.RemindExpiring(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, details.(map[string]any)["candidates"])
}
