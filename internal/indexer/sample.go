package indexer

import (
	"strings"
	"unicode/utf8"
)

const (
	// SampleBytes is how much of a file's head is stored as content.
	SampleBytes = 1000
	// HTMLMaxChars caps the decoded content of .html files.
	HTMLMaxChars = 10000

	htmlSampleBytes = HTMLMaxChars * utf8.UTFMax
)

// isImage reports whether ext names a format whose content is not stored.
func isImage(ext string) bool {
	switch strings.ToLower(ext) {
	case ".png", ".jpeg", ".jpg", ".svg":
		return true
	}
	return false
}

func isHTML(ext string) bool {
	return strings.EqualFold(ext, ".html")
}

// splitName splits a base name at its last dot. Leading dots belong to the
// name, so ".bashrc" has no extension.
func splitName(base string) (name, ext string) {
	i := strings.LastIndexByte(base, '.')
	lead := len(base) - len(strings.TrimLeft(base, "."))
	if i < lead {
		return base, ""
	}
	return base[:i], base[i:]
}

// decode converts raw bytes to text, dropping invalid UTF-8 sequences
// instead of failing.
func decode(b []byte) string {
	return strings.ToValidUTF8(string(b), "")
}

// truncateChars returns the first n characters of s.
func truncateChars(s string, n int) string {
	if len(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
