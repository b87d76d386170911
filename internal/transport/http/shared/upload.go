package shared

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"backoffice/internal/platform/requestctx"
	"backoffice/internal/transport/http/api"
)

const multipartMemory = 1 << 20

// Upload is a multipart "file" field plus the record version it replaces.
type Upload struct {
	File     multipart.File
	FileName string
	Version  int
}

// ReadUpload parses a multipart request with a "file" part and a "version"
// field. It answers the error itself; on success the caller closes File.
func ReadUpload(w http.ResponseWriter, r *http.Request) (Upload, bool) {
	requestID := requestctx.GetRequestID(r.Context())
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			api.Fail(w, http.StatusRequestEntityTooLarge, "payload_too_large", "uploaded file too large", requestID)
			return Upload{}, false
		}
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "expected a multipart/form-data body", requestID)
		return Upload{}, false
	}

	v := NewValidator()
	version, err := strconv.Atoi(strings.TrimSpace(r.FormValue("version")))
	if err != nil || version < 1 {
		v.Add("version", "is required and must be a positive integer")
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		v.Add("file", "is required")
	}
	if v.Reject(w, requestID) {
		if file != nil {
			_ = file.Close()
		}
		return Upload{}, false
	}
	return Upload{File: file, FileName: header.Filename, Version: version}, true
}
