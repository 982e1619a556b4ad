package middleware

import (
	"path"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// MatchFileName strips suffix from the base name of filePath.
//
// Matching is exact and case-sensitive on every platform. Names are NFC
// normalized first, so a file name means the same thing whether the host
// stores it composed or decomposed. Hidden names (leading '.') never match,
// and neither does a name that would be empty after stripping.
func MatchFileName(filePath, suffix string) (string, bool) {
	base := norm.NFC.String(path.Base(filePath))
	if strings.HasPrefix(base, ".") {
		return "", false
	}
	name, ok := strings.CutSuffix(base, suffix)
	if !ok || name == "" {
		return "", false
	}
	return name, true
}

// fileName is the normalized base name of p.
func fileName(p string) string {
	return norm.NFC.String(path.Base(p))
}

// matchFirst tries suffixes in order and returns the first match with the
// index of the suffix that matched.
func matchFirst(filePath string, suffixes ...string) (string, int, bool) {
	for i, s := range suffixes {
		if name, ok := MatchFileName(filePath, s); ok {
			return name, i, true
		}
	}
	return "", -1, false
}
