package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"backoffice/internal/platform/apperr"
)

type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type Envelope struct {
	Success    bool      `json:"success"`
	Data       any       `json:"data,omitempty"`
	Message    string    `json:"message,omitempty"`
	Error      *Error    `json:"error,omitempty"`
	StatusCode int       `json:"statusCode"`
	Timestamp  time.Time `json:"timestamp"`
	RequestID  string    `json:"requestId,omitempty"`
}

// WriteJSON stamps the status code and timestamp onto payload and writes it.
func WriteJSON(w http.ResponseWriter, status int, payload Envelope) {
	payload.StatusCode = status
	if payload.Timestamp.IsZero() {
		payload.Timestamp = time.Now().UTC()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Warn("write json failed", "err", err)
	}
}

func Success(w http.ResponseWriter, data any, requestID string) {
	WriteJSON(w, http.StatusOK, Envelope{Success: true, Data: data, RequestID: requestID})
}

func Created(w http.ResponseWriter, data any, requestID string) {
	WriteJSON(w, http.StatusCreated, Envelope{Success: true, Data: data, RequestID: requestID})
}

// Message answers 200 with no data, e.g. after a delete or logout.
func Message(w http.ResponseWriter, message, requestID string) {
	WriteJSON(w, http.StatusOK, Envelope{Success: true, Message: message, RequestID: requestID})
}

func Fail(w http.ResponseWriter, status int, code, message, requestID string) {
	WriteJSON(w, status, Envelope{Success: false, Message: message, Error: &Error{Code: code, Message: message}, RequestID: requestID})
}

func FailWithDetails(w http.ResponseWriter, status int, code, message string, details any, requestID string) {
	WriteJSON(w, status, Envelope{Success: false, Message: message, Error: &Error{Code: code, Message: message, Details: details}, RequestID: requestID})
}

// FailErr maps a service error onto the envelope. Internal errors are logged
// and answered with a generic message.
func FailErr(w http.ResponseWriter, err error, requestID string) {
	code := apperr.GetCode(err)
	status := apperr.HTTPStatus(code)
	if status >= http.StatusInternalServerError && code != apperr.CodeStorage && code != apperr.CodeUnavailable {
		slog.Error("request failed", "err", err, "requestId", requestID)
	}
	Fail(w, status, string(code), apperr.Message(err), requestID)
}
