package tracker

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
)

// ImageUploader stores a session photo and returns a URL for it.
type ImageUploader interface {
	UploadImage(ctx context.Context, r io.Reader, contentType string) (string, error)
}

// AttachPhoto turns the image at path into a reference for the next finished session.
// It uploads when an uploader is configured and falls back to a local file URI otherwise.
func (s *Service) AttachPhoto(ctx context.Context, path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve photo path: %w", err)
	}
	f, err := os.Open(abs)
	if err != nil {
		return "", fmt.Errorf("open photo: %w", err)
	}
	defer f.Close()

	local := (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String()
	if s.uploader == nil {
		return local, nil
	}

	contentType, err := detectContentType(f, abs)
	if err != nil {
		return "", err
	}
	publicURL, err := s.uploader.UploadImage(ctx, f, contentType)
	if err != nil {
		s.logger.Warn("photo upload failed, keeping local reference", "path", abs, "err", err)
		return local, nil
	}
	return publicURL, nil
}

func detectContentType(f *os.File, path string) (string, error) {
	if byExt := mime.TypeByExtension(filepath.Ext(path)); byExt != "" {
		return byExt, nil
	}
	head := make([]byte, 512)
	n, err := f.Read(head)
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("read photo: %w", err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("rewind photo: %w", err)
	}
	return http.DetectContentType(head[:n]), nil
}
