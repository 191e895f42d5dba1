package validation

import (
	"errors"
	"mime/multipart"
	"path/filepath"
	"strings"
)

var (
	ErrFileSize     = errors.New("file size exceeds limit of 10MB")
	ErrFileType     = errors.New("invalid file type. Allowed types: JPG, PNG, WEBP")
	ErrFileRequired = errors.New("no photo provided")
)

const MaxImageSize = 10 * 1024 * 1024

var allowedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
}

var allowedContentTypes = map[string]bool{
	"":                         true,
	"application/octet-stream": true,
	"image/jpeg":               true,
	"image/png":                true,
	"image/webp":               true,
}

// ValidateImage checks an uploaded analysis photo before it is decoded.
func ValidateImage(file *multipart.FileHeader) error {
	if file == nil {
		return ErrFileRequired
	}
	if file.Size > MaxImageSize {
		return ErrFileSize
	}
	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !allowedExtensions[ext] {
		return ErrFileType
	}
	if !allowedContentTypes[strings.ToLower(file.Header.Get("Content-Type"))] {
		return ErrFileType
	}
	return nil
}
