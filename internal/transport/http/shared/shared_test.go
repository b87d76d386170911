package shared

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePagination(t *testing.T) {
	tests := []struct {
		name   string
		query  string
		limit  int
		offset int
		page   int
	}{
		{name: "defaults", query: "", limit: 20, offset: 0, page: 1},
		{name: "page and size", query: "?page=3&pageSize=10", limit: 10, offset: 20, page: 3},
		{name: "clamped size", query: "?pageSize=1000", limit: 100, offset: 0, page: 1},
		{name: "limit offset", query: "?limit=5&offset=15", limit: 5, offset: 15, page: 4},
		{name: "huge page clamped", query: "?page=922337203685477581&pageSize=100", limit: 100, offset: 2147483600, page: 21474837},
		{name: "huge offset clamped", query: "?limit=10&offset=99999999999", limit: 10, offset: 2147483647, page: 214748365},
		{name: "garbage ignored", query: "?page=-2&pageSize=abc", limit: 20, offset: 0, page: 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := ParsePage(httptest.NewRequest(http.MethodGet, "/items"+tc.query, nil))
			assert.Equal(t, tc.limit, got.Limit)
			assert.Equal(t, tc.offset, got.Offset)
			assert.Equal(t, tc.page, got.Page)
		})
	}
}

type samplePayload struct {
	Name     string `json:"name" validate:"required,max=5"`
	Email    string `json:"email" validate:"omitempty,email"`
	Priority string `json:"priority" validate:"omitempty,oneof=low medium high"`
}

func TestValidatorStruct(t *testing.T) {
	v := NewValidator()
	v.Struct(samplePayload{Name: "too long name", Email: "nope", Priority: "urgent"})
	issues := v.Issues()
	require.Len(t, issues, 3)
	assert.Equal(t, ValidationIssue{Field: "email", Reason: "must be a valid email address"}, issues[0])
	assert.Equal(t, ValidationIssue{Field: "name", Reason: "must be at most 5 characters"}, issues[1])
	assert.Equal(t, ValidationIssue{Field: "priority", Reason: "must be one of: low, medium, high"}, issues[2])

	ok := NewValidator()
	ok.Struct(samplePayload{Name: "Ann"})
	assert.False(t, ok.HasIssues())
}

func TestValidatorRejectWritesFieldDetails(t *testing.T) {
	v := NewValidator()
	v.Required("name", " ", "is required")
	start, _ := v.Date("startDate", "2024-05-01")
	end, _ := v.Date("endDate", "2024-04-01")
	v.DateOrder("startDate", start, "endDate", end)

	rec := httptest.NewRecorder()
	require.True(t, v.Reject(rec, "req-1"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var body struct {
		Error struct {
			Code    string `json:"code"`
			Details struct {
				Fields []ValidationIssue `json:"fields"`
			} `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "validation_error", body.Error.Code)
	assert.Len(t, body.Error.Details.Fields, 3)
}

func TestOptionalDate(t *testing.T) {
	v := NewValidator()
	assert.Nil(t, v.OptionalDate("dueDate", ""))
	got := v.OptionalDate("dueDate", "2025-02-03")
	require.NotNil(t, got)
	assert.Equal(t, 3, got.Day())
	assert.Nil(t, v.OptionalDate("dueDate", "03/02/2025"))
	assert.True(t, v.HasIssues())
}

func TestDecodeJSONRejectsUnknownFields(t *testing.T) {
	var dest samplePayload
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{"name":"a","extra":1}`))
	rec := httptest.NewRecorder()
	assert.False(t, DecodeJSON(rec, req, &dest))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{"name":"a"}`))
	assert.True(t, DecodeJSON(httptest.NewRecorder(), req, &dest))
	assert.Equal(t, "a", dest.Name)
}

func TestRemoteIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	assert.Equal(t, "10.0.0.1", ClientIP(req))
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	assert.Equal(t, "203.0.113.9", ClientIP(req))
}
