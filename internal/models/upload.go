package models

import (
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
)

// Upload is a named file handed to ingestion, from disk or from a request.
type Upload interface {
	Name() string
	Read() ([]byte, error)
}

// FileUpload reads an upload from a local path.
type FileUpload struct {
	Path string
}

// Name returns the base name of the file.
func (f FileUpload) Name() string {
	return filepath.Base(f.Path)
}

// Read returns the file contents.
func (f FileUpload) Read() ([]byte, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("read upload %s: %w", f.Path, err)
	}
	return data, nil
}

// MultipartUpload adapts a multipart file header.
type MultipartUpload struct {
	Header *multipart.FileHeader
}

// Name returns the client-supplied file name without directories.
func (m MultipartUpload) Name() string {
	return filepath.Base(m.Header.Filename)
}

// Read returns the uploaded bytes.
func (m MultipartUpload) Read() ([]byte, error) {
	f, err := m.Header.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload %s: %w", m.Header.Filename, err)
	}
	defer f.Close()
	return io.ReadAll(f)
}

// BytesUpload is an in-memory upload.
type BytesUpload struct {
	Filename string
	Data     []byte
}

// Name returns the file name.
func (b BytesUpload) Name() string {
	return b.Filename
}

// Read returns the data.
func (b BytesUpload) Read() ([]byte, error) {
	return b.Data, nil
}
