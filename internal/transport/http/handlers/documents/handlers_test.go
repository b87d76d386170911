package documentshandler

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backoffice/internal/domain/auth"
	"backoffice/internal/domain/documents"
	"backoffice/internal/platform/apperr"
	"backoffice/internal/platform/db"
	"backoffice/internal/platform/storage"
	"backoffice/internal/transport/http/handlers/handlertest"
	"backoffice/internal/transport/http/middleware"
)

type memoryStore struct {
	mu    sync.Mutex
	items map[string]documents.Document
}

func (m *memoryStore) MissingRef(context.Context, ...db.Ref) (string, error) { return "", nil }

func (m *memoryStore) List(context.Context, documents.Filter, int, int) ([]documents.Document, int, error) {
	return nil, 0, nil
}

func (m *memoryStore) Get(_ context.Context, id string) (documents.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.items[id]
	if !ok {
		return documents.Document{}, apperr.NotFound("identity document not found")
	}
	return d, nil
}

func (m *memoryStore) Create(_ context.Context, in documents.Input, _ string) (documents.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := documents.Document{
		ID: uuid.NewString(), EmployeeID: in.EmployeeID, DocumentType: in.DocumentType,
		DocumentNumber: in.DocumentNumber, IssuingCountry: in.IssuingCountry, ExpiryDate: in.ExpiryDate, Version: 1,
	}
	m.items[d.ID] = d
	return d, nil
}

func (m *memoryStore) Update(_ context.Context, id string, version int, in documents.Input, _ string) (documents.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.items[id]
	if !ok {
		return documents.Document{}, apperr.NotFound("identity document not found")
	}
	if d.Version != version {
		return documents.Document{}, apperr.VersionConflict("identity document")
	}
	d.DocumentNumber = in.DocumentNumber
	d.Version++
	m.items[id] = d
	return d, nil
}

func (m *memoryStore) Delete(context.Context, string, int, string) error { return nil }

func (m *memoryStore) SetFile(_ context.Context, id string, _ int, att storage.Attachment, _ string) (documents.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.items[id]
	d.File = &att
	d.Version++
	m.items[id] = d
	return d, nil
}

func (m *memoryStore) ExpiringBefore(context.Context, time.Time) ([]documents.Expiring, error) {
	return nil, nil
}

func (m *memoryStore) MarkReminded(context.Context, string, time.Time) error { return nil }

const employeeID = "8e9f0a1b-2c3d-4e5f-8a6b-7c8d9e0f1a2b"

var hr = handlertest.User("6c7d8e9f-0a1b-4c2d-9e3f-4a5b6c7d8e9f", auth.RoleHR)

func setup(files storage.Storage) (func(chi.Router), *memoryStore, *handlertest.Recorder) {
	store := &memoryStore{items: map[string]documents.Document{}}
	recorder := &handlertest.Recorder{}
	svc := documents.NewService(store, files, nil, 1<<20, 30)
	return NewHandler(svc, recorder, handlertest.Perms{}).RegisterRoutes, store, recorder
}

func passport() map[string]any {
	return map[string]any{
		"employeeId":     employeeID,
		"documentType":   "passport",
		"documentNumber": "x1234567",
		"issuingCountry": "gb",
		"issueDate":      "2020-01-10",
		"expiryDate":     "2030-01-09",
	}
}

func uploadRequest(t *testing.T, id, version string, content []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("version", version))
	part, err := mw.CreateFormFile("file", "passport.pdf")
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPut, "/identity-documents/"+id+"/file", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req.WithContext(middleware.WithUser(req.Context(), hr))
}

func TestCreateAndUpdateDocument(t *testing.T) {
	routes, _, recorder := setup(storage.NewMemory())

	rec, env := handlertest.Do(t, routes, hr, http.MethodPost, "/identity-documents", passport())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var d documents.Document
	handlertest.Decode(t, env, &d)
	assert.Equal(t, "X1234567", d.DocumentNumber)
	assert.Equal(t, "GB", d.IssuingCountry)

	update := passport()
	update["documentNumber"] = "Y7654321"
	update["version"] = 1
	rec, _ = handlertest.Do(t, routes, hr, http.MethodPut, "/identity-documents/"+uuid.NewString(), update)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, env = handlertest.Do(t, routes, hr, http.MethodPut, "/identity-documents/"+d.ID, update)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	handlertest.Decode(t, env, &d)
	assert.Equal(t, 2, d.Version)

	assert.Equal(t, []string{"documents.create", "documents.update"}, recorder.Actions())
}

func TestCreateDocumentFieldErrors(t *testing.T) {
	routes, store, _ := setup(storage.NewMemory())

	rec, env := handlertest.Do(t, routes, hr, http.MethodPost, "/identity-documents", map[string]any{
		"employeeId":     "nobody",
		"documentType":   "library_card",
		"issuingCountry": "GBR",
		"issueDate":      "2030-01-01",
		"expiryDate":     "2020-01-01",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, []string{"documentNumber", "documentType", "employeeId", "expiryDate", "issueDate", "issuingCountry"}, handlertest.Fields(t, env))
	assert.Empty(t, store.items)
}

func TestFileEndpointsWithoutStorage(t *testing.T) {
	routes, store, recorder := setup(storage.Disabled{})
	d, err := store.Create(context.Background(), documents.Input{EmployeeID: employeeID, DocumentType: documents.TypePassport, DocumentNumber: "P1", IssuingCountry: "GB"}, "seed")
	require.NoError(t, err)

	rec, env := handlertest.Serve(t, routes, uploadRequest(t, d.ID, "1", []byte("%PDF-1.4\n1 0 obj\n<<>>\nendobj\n")))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code, rec.Body.String())
	assert.Equal(t, "storage_unavailable", env.Error.Code)

	withFile, err := store.SetFile(context.Background(), d.ID, 1, storage.Attachment{Key: "documents/" + d.ID + "/passport.pdf", FileName: "passport.pdf", ContentType: "application/pdf"}, "seed")
	require.NoError(t, err)
	rec, env = handlertest.Do(t, routes, hr, http.MethodGet, "/identity-documents/"+withFile.ID+"/file", nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "storage_unavailable", env.Error.Code)

	assert.Empty(t, recorder.Actions())
}
