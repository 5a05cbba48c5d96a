package domain

import (
	"strings"
	"unicode/utf8"
)

// NormalizeTags trims tags, drops empties and keeps the first spelling of
// tags that differ only by case. Characters are stored as given.
func NormalizeTags(tags []string) ([]string, error) {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, raw := range tags {
		tag := strings.TrimSpace(raw)
		if tag == "" {
			continue
		}
		if utf8.RuneCountInString(tag) > MaxTagLength {
			return nil, Invalid("tags", "tag %q exceeds %d characters", tag, MaxTagLength)
		}
		key := strings.ToLower(tag)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, tag)
	}
	if len(out) > MaxTags {
		return nil, Invalid("tags", "at most %d tags allowed, got %d", MaxTags, len(out))
	}
	return out, nil
}
