// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/ManuGH/headless-mpv/internal/library"
	"github.com/ManuGH/headless-mpv/internal/log"
	"github.com/ManuGH/headless-mpv/internal/metrics"
	"github.com/go-chi/chi/v5"
)

// multipartOverhead is the slack allowed on top of the file size for part
// headers and boundaries.
const multipartOverhead = 1 << 20

func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	items, err := s.library.List()
	if err != nil {
		logger := log.WithContext(r.Context(), s.logger)
		logger.Error().Err(err).Str(log.FieldEvent, "api.list_failed").Msg("failed to list media files")
		items = []library.Item{}
	}
	writeJSON(w, r, http.StatusOK, items)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	limit := s.config.Get().MaxUploadSize
	r.Body = http.MaxBytesReader(w, r.Body, limit+multipartOverhead)

	mr, err := r.MultipartReader()
	if err != nil {
		metrics.RecordUpload("invalid", 0)
		writeError(w, r, http.StatusBadRequest, "No file provided")
		return
	}

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			metrics.RecordUpload("invalid", 0)
			writeError(w, r, http.StatusBadRequest, "No file provided")
			return
		}
		if err != nil {
			s.uploadFailed(w, r, err, limit)
			return
		}
		if part.FormName() != "file" {
			_ = part.Close()
			continue
		}

		filename := part.FileName()
		if filename == "" {
			_ = part.Close()
			metrics.RecordUpload("invalid", 0)
			writeError(w, r, http.StatusBadRequest, "No file selected")
			return
		}

		stored, err := s.library.Save(filename, part, limit)
		_ = part.Close()
		if err != nil {
			s.uploadFailed(w, r, err, limit)
			return
		}

		var size int64
		if path, err := s.library.Lookup(stored); err == nil {
			if info, err := os.Stat(path); err == nil {
				size = info.Size()
			}
		}
		metrics.RecordUpload("ok", size)
		writeResult(w, r, http.StatusOK, true, fmt.Sprintf("File %s uploaded successfully", stored), map[string]any{
			"filename": stored,
		})
		return
	}
}

func (s *Server) uploadFailed(w http.ResponseWriter, r *http.Request, err error, limit int64) {
	var maxErr *http.MaxBytesError
	switch {
	case errors.Is(err, library.ErrTooLarge), errors.As(err, &maxErr):
		metrics.RecordUpload("too_large", 0)
		writeError(w, r, http.StatusRequestEntityTooLarge, "File too large (max %s)", humanBytes(limit))
	case errors.Is(err, library.ErrUnsupportedExtension):
		metrics.RecordUpload("unsupported", 0)
		writeError(w, r, http.StatusBadRequest, "Unsupported file type. Supported: %s", strings.Join(library.SupportedExtensions, ", "))
	case errors.Is(err, library.ErrInvalidName):
		metrics.RecordUpload("invalid", 0)
		writeError(w, r, http.StatusBadRequest, "Invalid file name")
	default:
		metrics.RecordUpload("error", 0)
		logger := log.WithContext(r.Context(), s.logger)
		logger.Error().Err(err).Str(log.FieldEvent, "api.upload_failed").Msg("upload failed")
		writeError(w, r, http.StatusInternalServerError, "Upload failed")
	}
}

func (s *Server) handleDeleteFile(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	path, err := s.library.Lookup(name)
	switch {
	case errors.Is(err, library.ErrInvalidName):
		metrics.RecordDelete("invalid")
		writeError(w, r, http.StatusBadRequest, "Invalid file name")
		return
	case err != nil:
		metrics.RecordDelete("not_found")
		writeError(w, r, http.StatusNotFound, "File not found")
		return
	}

	if samePath(path, s.player.CurrentFile()) {
		s.player.Stop(r.Context())
	}

	if err := s.library.Delete(name); err != nil {
		if errors.Is(err, library.ErrNotFound) {
			metrics.RecordDelete("not_found")
			writeError(w, r, http.StatusNotFound, "File not found")
			return
		}
		metrics.RecordDelete("error")
		logger := log.WithContext(r.Context(), s.logger)
		logger.Error().Err(err).Str(log.FieldEvent, "api.delete_failed").Msg("delete failed")
		writeError(w, r, http.StatusInternalServerError, "Delete failed")
		return
	}
	metrics.RecordDelete("ok")
	writeResult(w, r, http.StatusOK, true, fmt.Sprintf("File %s deleted", filepath.Base(path)), nil)
}

// samePath reports whether a and b name the same file.
func samePath(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	if filepath.Clean(a) == filepath.Clean(b) {
		return true
	}
	ai, err := os.Stat(a)
	if err != nil {
		return false
	}
	bi, err := os.Stat(b)
	if err != nil {
		return false
	}
	return os.SameFile(ai, bi)
}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	value := float64(n) / float64(div)
	if value == float64(int64(value)) {
		return fmt.Sprintf("%d %ciB", int64(value), "KMGTPE"[exp])
	}
	return fmt.Sprintf("%.1f %ciB", value, "KMGTPE"[exp])
}
