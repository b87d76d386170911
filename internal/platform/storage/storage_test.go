package storage

import (
	"context"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backoffice/internal/platform/apperr"
	"backoffice/internal/platform/config"
)

func TestNewWithoutEndpointIsDisabled(t *testing.T) {
	s, err := New(context.Background(), config.Config{})
	require.NoError(t, err)

	_, err = s.Put(context.Background(), "k", strings.NewReader("x"), PutObjectOptions{Size: 1})
	assert.Equal(t, apperr.CodeStorage, apperr.GetCode(err))
	_, err = s.PresignGet(context.Background(), "k", time.Minute)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, s.Delete(context.Background(), "k"), ErrUnavailable)
}

func TestDetectContentType(t *testing.T) {
	tests := []struct {
		name    string
		head    []byte
		want    string
		allowed bool
	}{
		{name: "pdf", head: []byte("%PDF-1.7\n"), want: "application/pdf", allowed: true},
		{name: "png", head: []byte("\x89PNG\r\n\x1a\n\x00\x00"), want: "image/png", allowed: true},
		{name: "jpeg", head: []byte("\xff\xd8\xff\xe0\x00\x10JFIF"), want: "image/jpeg", allowed: true},
		{name: "text", head: []byte("hello world"), want: "text/plain", allowed: false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := DetectContentType(tc.head)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.allowed, ok)
		})
	}
}

func TestObjectKey(t *testing.T) {
	key := ObjectKey("certifications", "c1", "scan.PDF", "application/pdf")
	assert.True(t, strings.HasPrefix(key, "certifications/c1/"))
	assert.True(t, strings.HasSuffix(key, ".pdf"))

	key = ObjectKey("documents", "d1", "noext", "image/png")
	assert.True(t, strings.HasSuffix(key, ".png"))
}

func TestSafeFileName(t *testing.T) {
	assert.Equal(t, "passport.pdf", SafeFileName("../../etc/passport.pdf"))
	assert.Equal(t, "scan.png", SafeFileName(`C:\Users\me\scan.png`))
	assert.Equal(t, "upload", SafeFileName(""))
	assert.Equal(t, "ab.pdf", SafeFileName("a\"b\n.pdf"))
}

func TestSafeFileNameTruncatesOnRuneBoundary(t *testing.T) {
	long := strings.Repeat("é", 150) + ".pdf"
	got := SafeFileName(long)
	assert.True(t, utf8.ValidString(got))
	assert.LessOrEqual(t, len(got), 200)
	assert.Equal(t, strings.Repeat("é", 98)+".pdf", got)

	ascii := SafeFileName(strings.Repeat("a", 300))
	assert.Len(t, ascii, 200)

	assert.Equal(t, "abc", truncateUTF8("abc", 10))
	assert.Equal(t, "a", truncateUTF8("aé", 2))
	assert.Equal(t, "", truncateUTF8("日本", 2))
}

func TestSaveUpload(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()

	att, err := SaveUpload(ctx, mem, "documents", "d1", "../passport.pdf", strings.NewReader("%PDF-1.4 body"), 1024)
	require.NoError(t, err)
	assert.Equal(t, "passport.pdf", att.FileName)
	assert.Equal(t, "application/pdf", att.ContentType)
	assert.EqualValues(t, 13, att.Size)
	assert.True(t, strings.HasPrefix(att.Key, "documents/d1/"))
	assert.True(t, mem.Has(att.Key))

	_, err = SaveUpload(ctx, mem, "documents", "d1", "a.txt", strings.NewReader("plain text"), 1024)
	assert.Equal(t, apperr.CodeValidation, apperr.GetCode(err))

	_, err = SaveUpload(ctx, mem, "documents", "d1", "big.pdf", strings.NewReader("%PDF-"+strings.Repeat("x", 64)), 16)
	assert.Equal(t, apperr.CodeValidation, apperr.GetCode(err))

	_, err = SaveUpload(ctx, mem, "documents", "d1", "empty.pdf", strings.NewReader(""), 16)
	assert.Equal(t, apperr.CodeValidation, apperr.GetCode(err))

	_, err = SaveUpload(ctx, Disabled{}, "documents", "d1", "p.pdf", strings.NewReader("%PDF-1.4"), 1024)
	assert.Equal(t, apperr.CodeStorage, apperr.GetCode(err))
}
