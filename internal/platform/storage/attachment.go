package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"backoffice/internal/platform/apperr"
)

// Attachment describes a stored upload as persisted on the owning record.
type Attachment struct {
	Key         string `json:"-"`
	FileName    string `json:"fileName"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
}

// SaveUpload validates an upload and stores it under prefix/ownerID.
// Uploads larger than maxBytes or of an unsupported type are rejected with a
// validation error.
func SaveUpload(ctx context.Context, st Storage, prefix, ownerID, fileName string, r io.Reader, maxBytes int64) (Attachment, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return Attachment{}, apperr.Wrap(apperr.CodeValidation, "could not read uploaded file", err)
	}
	if len(data) == 0 {
		return Attachment{}, apperr.Validation("uploaded file is empty")
	}
	if int64(len(data)) > maxBytes {
		return Attachment{}, apperr.Validation(fmt.Sprintf("file exceeds the %d byte limit", maxBytes))
	}
	contentType, ok := DetectContentType(data)
	if !ok {
		return Attachment{}, apperr.Validation("file type " + contentType + " is not allowed; use pdf, png or jpeg")
	}

	name := SafeFileName(fileName)
	key := ObjectKey(prefix, ownerID, name, contentType)
	info, err := st.Put(ctx, key, bytes.NewReader(data), PutObjectOptions{
		ContentType: contentType,
		Size:        int64(len(data)),
		Metadata:    map[string]string{"original-name": name},
	})
	if err != nil {
		if apperr.Is(err, apperr.CodeStorage) {
			return Attachment{}, err
		}
		return Attachment{}, apperr.Wrap(apperr.CodeStorage, "could not store file", err)
	}
	return Attachment{Key: info.Key, FileName: name, ContentType: contentType, Size: int64(len(data))}, nil
}
