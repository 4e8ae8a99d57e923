// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package library manages the flat media directory the player reads from:
// listing, upload and deletion. Every name that enters from outside is
// sanitised and confined to the directory.
package library

import (
	"errors"
	"time"
)

var (
	ErrInvalidName          = errors.New("invalid file name")
	ErrUnsupportedExtension = errors.New("unsupported file type")
	ErrTooLarge             = errors.New("file too large")
	ErrNotFound             = errors.New("file not found")
)

// SupportedExtensions lists the container formats accepted for upload and listing.
var SupportedExtensions = []string{
	".mp4", ".avi", ".mkv", ".mov", ".wmv", ".flv",
	".webm", ".m4v", ".mpg", ".mpeg", ".3gp", ".ogv",
}

// Item is one media file in the library.
type Item struct {
	Name     string    `json:"name"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
}
