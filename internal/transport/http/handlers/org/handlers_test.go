package orghandler

import (
	"context"
	"net/http"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backoffice/internal/domain/auth"
	"backoffice/internal/domain/org"
	"backoffice/internal/platform/apperr"
	"backoffice/internal/platform/db"
	"backoffice/internal/transport/http/handlers/handlertest"
)

type memoryStore struct {
	mu          sync.Mutex
	departments map[string]org.Department
	positions   map[string]org.Position
}

func newMemoryStore() *memoryStore {
	return &memoryStore{departments: map[string]org.Department{}, positions: map[string]org.Position{}}
}

func (m *memoryStore) MissingRef(_ context.Context, refs ...db.Ref) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ref := range refs {
		if ref.ID == "" || ref.Table() != "departments" {
			continue
		}
		if _, ok := m.departments[ref.ID]; !ok {
			return ref.Field, nil
		}
	}
	return "", nil
}

func (m *memoryStore) ListDepartments(context.Context) ([]org.Department, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]org.Department, 0, len(m.departments))
	for _, d := range m.departments {
		out = append(out, d)
	}
	return out, nil
}

func (m *memoryStore) GetDepartment(_ context.Context, id string) (org.Department, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.departments[id]
	if !ok {
		return org.Department{}, apperr.NotFound("department not found")
	}
	return d, nil
}

func (m *memoryStore) CreateDepartment(_ context.Context, in org.DepartmentInput, _ string) (org.Department, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := org.Department{ID: uuid.NewString(), Name: in.Name, Code: in.Code, ParentID: in.ParentID, ManagerID: in.ManagerID, Version: 1}
	m.departments[d.ID] = d
	return d, nil
}

func (m *memoryStore) UpdateDepartment(_ context.Context, id string, version int, in org.DepartmentInput, _ string) (org.Department, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.departments[id]
	if !ok {
		return org.Department{}, apperr.NotFound("department not found")
	}
	if d.Version != version {
		return org.Department{}, apperr.VersionConflict("department")
	}
	d.Name, d.ParentID = in.Name, in.ParentID
	d.Version++
	m.departments[id] = d
	return d, nil
}

func (m *memoryStore) DeleteDepartment(_ context.Context, id string, _ int, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.departments, id)
	return nil
}

func (m *memoryStore) DepartmentInUse(context.Context, string) (bool, error) { return false, nil }

func (m *memoryStore) IsDescendant(context.Context, string, string) (bool, error) { return false, nil }

func (m *memoryStore) ListPositions(context.Context, string, int, int) ([]org.Position, int, error) {
	return nil, 0, nil
}

func (m *memoryStore) GetPosition(_ context.Context, id string) (org.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.positions[id]
	if !ok {
		return org.Position{}, apperr.NotFound("position not found")
	}
	return p, nil
}

func (m *memoryStore) CreatePosition(_ context.Context, in org.PositionInput, _ string) (org.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := org.Position{ID: uuid.NewString(), Title: in.Title, DepartmentID: in.DepartmentID, MinSalary: in.MinSalary, MaxSalary: in.MaxSalary, Version: 1}
	m.positions[p.ID] = p
	return p, nil
}

func (m *memoryStore) UpdatePosition(_ context.Context, id string, version int, in org.PositionInput, _ string) (org.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.positions[id]
	if !ok {
		return org.Position{}, apperr.NotFound("position not found")
	}
	if p.Version != version {
		return org.Position{}, apperr.VersionConflict("position")
	}
	p.Title = in.Title
	p.Version++
	m.positions[id] = p
	return p, nil
}

func (m *memoryStore) DeletePosition(context.Context, string, int, string) error { return nil }

func (m *memoryStore) PositionInUse(context.Context, string) (bool, error) { return false, nil }

func setup() (*Handler, *memoryStore, *handlertest.Recorder) {
	store := newMemoryStore()
	recorder := &handlertest.Recorder{}
	return NewHandler(org.NewService(store, nil, 0), recorder, handlertest.Perms{}), store, recorder
}

var hr = handlertest.User("5b6c7d8e-9f0a-4b1c-8d2e-3f4a5b6c7d8e", auth.RoleHR)

func TestDepartmentCreateAndUpdate(t *testing.T) {
	h, _, recorder := setup()

	rec, _ := handlertest.Do(t, h.RegisterRoutes, handlertest.User("e1", auth.RoleEmployee), http.MethodPost, "/departments", map[string]any{"name": "Ops"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, env := handlertest.Do(t, h.RegisterRoutes, hr, http.MethodPost, "/departments", map[string]any{"name": " Engineering ", "code": "ENG"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var dept org.Department
	handlertest.Decode(t, env, &dept)
	assert.Equal(t, "Engineering", dept.Name)

	rec, _ = handlertest.Do(t, h.RegisterRoutes, hr, http.MethodPut, "/departments/"+uuid.NewString(), map[string]any{"name": "Nope", "version": 1})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, env = handlertest.Do(t, h.RegisterRoutes, hr, http.MethodPut, "/departments/"+dept.ID, map[string]any{"name": "Platform", "version": 1})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	handlertest.Decode(t, env, &dept)
	assert.Equal(t, 2, dept.Version)

	rec, env = handlertest.Do(t, h.RegisterRoutes, hr, http.MethodGet, "/departments", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("X-Total-Count"))

	assert.Equal(t, []string{"org.department.create", "org.department.update"}, recorder.Actions())
}

func TestDepartmentFieldErrors(t *testing.T) {
	h, _, _ := setup()

	rec, env := handlertest.Do(t, h.RegisterRoutes, hr, http.MethodPost, "/departments", map[string]any{
		"name":      "",
		"code":      "THIS-CODE-IS-FAR-TOO-LONG",
		"parentId":  "engineering",
		"managerId": "someone",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, []string{"code", "managerId", "name", "parentId"}, handlertest.Fields(t, env))

	rec, env = handlertest.Do(t, h.RegisterRoutes, hr, http.MethodPost, "/departments", map[string]any{"name": "Ops", "parentId": uuid.NewString()})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "parentId does not exist", env.Error.Message)
}

func TestPositionEndpoints(t *testing.T) {
	h, store, recorder := setup()
	dept, err := store.CreateDepartment(context.Background(), org.DepartmentInput{Name: "Engineering"}, "seed")
	require.NoError(t, err)

	rec, env := handlertest.Do(t, h.RegisterRoutes, hr, http.MethodPost, "/positions", map[string]any{
		"title":     "",
		"minSalary": "-1",
		"maxSalary": "-2",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, []string{"departmentId", "maxSalary", "minSalary", "title"}, handlertest.Fields(t, env))

	rec, env = handlertest.Do(t, h.RegisterRoutes, hr, http.MethodPost, "/positions", map[string]any{
		"title":        "Staff Engineer",
		"departmentId": dept.ID,
		"minSalary":    "6000",
		"maxSalary":    "9000",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var pos org.Position
	handlertest.Decode(t, env, &pos)
	assert.Equal(t, "6000", pos.MinSalary.Decimal.String())

	rec, _ = handlertest.Do(t, h.RegisterRoutes, hr, http.MethodPut, "/positions/"+uuid.NewString(), map[string]any{
		"title": "Principal", "departmentId": dept.ID, "version": 1,
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, env = handlertest.Do(t, h.RegisterRoutes, hr, http.MethodPut, "/positions/"+pos.ID, map[string]any{
		"title": "Principal", "departmentId": dept.ID, "minSalary": "9000", "maxSalary": "6000", "version": 1,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_error", env.Error.Code)

	assert.Equal(t, []string{"org.position.create"}, recorder.Actions())
}
