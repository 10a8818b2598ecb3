package domain

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// NormalizeTags trims, NFC-normalizes and de-duplicates tags case-insensitively.
// The first spelling of a tag wins and input order is preserved.
func NormalizeTags(tags []string) []string {
	fold := cases.Fold()
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))

	for _, tag := range tags {
		tag = strings.TrimSpace(norm.NFC.String(tag))
		if tag == "" {
			continue
		}
		key := fold.String(tag)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, tag)
	}
	return out
}
