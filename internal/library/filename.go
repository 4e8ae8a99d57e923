// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package library

import (
	"path/filepath"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// SecureFilename reduces name to a safe base name: NFKD-decomposed ASCII,
// whitespace runs turned into one underscore, only [A-Za-z0-9_.-] kept and
// dots or underscores at either end removed. It returns "" when nothing
// usable is left.
func SecureFilename(name string) string {
	// Both separators count, whatever the host OS.
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base("/" + name)

	joined := strings.Join(strings.Fields(norm.NFKD.String(name)), "_")
	var b strings.Builder
	b.Grow(len(joined))
	for _, r := range joined {
		if r > unicode.MaxASCII {
			continue
		}
		if isSafeRune(r) {
			b.WriteRune(r)
		}
	}
	return strings.Trim(b.String(), "._")
}

func isSafeRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '.', r == '-', r == '_':
		return true
	}
	return false
}

// IsSupported reports whether name carries a supported media extension.
func IsSupported(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range SupportedExtensions {
		if ext == e {
			return true
		}
	}
	return false
}
