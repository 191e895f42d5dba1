package validation

import (
	"mime/multipart"
	"net/textproto"
	"testing"

	"github.com/stretchr/testify/assert"
)

func header(name, contentType string, size int64) *multipart.FileHeader {
	h := textproto.MIMEHeader{}
	if contentType != "" {
		h.Set("Content-Type", contentType)
	}
	return &multipart.FileHeader{Filename: name, Header: h, Size: size}
}

func TestValidateImage(t *testing.T) {
	tests := []struct {
		name string
		file *multipart.FileHeader
		want error
	}{
		{"missing", nil, ErrFileRequired},
		{"jpeg", header("me.JPG", "image/jpeg", 1024), nil},
		{"webp without content type", header("me.webp", "", 1024), nil},
		{"too large", header("me.png", "image/png", MaxImageSize+1), ErrFileSize},
		{"gif", header("me.gif", "image/gif", 1024), ErrFileType},
		{"renamed pdf", header("me.png", "application/pdf", 1024), ErrFileType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidateImage(tt.file))
		})
	}
}
