package storage

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

var (
	ErrFileTooLarge       = errors.New("file too large")
	ErrFileTypeNotAllowed = errors.New("file type not allowed")
	ErrSuspiciousContent  = errors.New("suspicious file content")
)

// UploadError names the rejected file. It unwraps to one of the sentinel errors above.
type UploadError struct {
	FileName string
	Reason   error
	Message  string
}

func (e *UploadError) Error() string { return e.Message }

func (e *UploadError) Unwrap() error { return e.Reason }

const DefaultMaxUploadSize = 5 * 1024 * 1024

var defaultDeniedExtensions = []string{
	".exe", ".bat", ".cmd", ".com", ".pif", ".scr", ".vbs", ".js", ".jar",
	".php", ".asp", ".aspx", ".jsp", ".sh", ".py", ".rb", ".pl", ".cgi",
	".htaccess", ".sql",
}

var defaultContentMarkers = []string{
	"<script", "javascript:", "eval(", "exec(", "system(", "shell_exec",
	"passthru", "base64_decode", "<?php", "<% ", "response.write", "createobject",
}

// UploadPolicy decides which uploads are accepted.
type UploadPolicy struct {
	MaxSize          int64
	DeniedExtensions []string
	// SniffBytes is how much of the file head is scanned for ContentMarkers.
	SniffBytes     int
	ContentMarkers []string
}

func DefaultUploadPolicy() UploadPolicy {
	return UploadPolicy{
		MaxSize:          DefaultMaxUploadSize,
		DeniedExtensions: append([]string(nil), defaultDeniedExtensions...),
		SniffBytes:       1024,
		ContentMarkers:   append([]string(nil), defaultContentMarkers...),
	}
}

// Check validates a file by name, size and leading bytes.
func (p UploadPolicy) Check(name string, size int64, head []byte) error {
	if p.MaxSize > 0 && size > p.MaxSize {
		return &UploadError{
			FileName: name,
			Reason:   ErrFileTooLarge,
			Message:  fmt.Sprintf("File %s is too large. Maximum size is %s.", name, humanSize(p.MaxSize)),
		}
	}

	ext := extension(name)
	for _, denied := range p.DeniedExtensions {
		if ext == denied {
			return &UploadError{
				FileName: name,
				Reason:   ErrFileTypeNotAllowed,
				Message:  fmt.Sprintf("File type %s is not allowed.", ext),
			}
		}
	}

	if p.SniffBytes > 0 && len(head) > p.SniffBytes {
		head = head[:p.SniffBytes]
	}
	lower := bytes.ToLower(head)
	for _, marker := range p.ContentMarkers {
		if bytes.Contains(lower, []byte(marker)) {
			return &UploadError{
				FileName: name,
				Reason:   ErrSuspiciousContent,
				Message:  fmt.Sprintf("File %s contains potentially malicious content.", name),
			}
		}
	}
	return nil
}

// extension handles dotfiles such as ".htaccess", which filepath.Ext would treat as
// having no name.
func extension(name string) string {
	base := strings.ToLower(filepath.Base(name))
	if strings.HasPrefix(base, ".") && strings.Count(base, ".") == 1 {
		return base
	}
	return filepath.Ext(base)
}

func humanSize(n int64) string {
	const mb = 1024 * 1024
	if n%mb == 0 {
		return fmt.Sprintf("%dMB", n/mb)
	}
	return fmt.Sprintf("%d bytes", n)
}
