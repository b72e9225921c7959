// Package contentkey derives the canonical cache key, lock key, period key
// and input hash for a unit of generated content. Everything here is pure:
// identical inputs produce identical keys across processes and restarts.
package contentkey

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/language"
	"solara.ai/insights-gateway/app/infrastructure/cache"
)

var kindPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

var ErrInvalidKey = errors.New("contentkey: invalid key")

// LogicalKey identifies one unit of content.
type LogicalKey struct {
	SubjectID     string
	Kind          string
	Period        string
	Language      string
	SchemaVersion int
	PromptVersion int
}

// Validate rejects keys that could not be addressed safely.
func (k LogicalKey) Validate() error {
	switch {
	case strings.TrimSpace(k.SubjectID) == "":
		return fmt.Errorf("%w: subject id is required", ErrInvalidKey)
	case !kindPattern.MatchString(k.Kind):
		return fmt.Errorf("%w: kind %q must match %s", ErrInvalidKey, k.Kind, kindPattern)
	case strings.TrimSpace(k.Period) == "":
		return fmt.Errorf("%w: period is required", ErrInvalidKey)
	case k.SchemaVersion < 1 || k.PromptVersion < 1:
		return fmt.Errorf("%w: schema and prompt versions must be >= 1", ErrInvalidKey)
	}
	if _, err := NormalizeLanguage(k.Language); err != nil {
		return err
	}
	return nil
}

// Normalized returns a copy with the language in canonical BCP 47 form.
func (k LogicalKey) Normalized() LogicalKey {
	if lang, err := NormalizeLanguage(k.Language); err == nil {
		k.Language = lang
	}
	return k
}

// CacheKey is the storage key for the content.
func (k LogicalKey) CacheKey() string {
	return k.render(cache.GeneratedContentKeyPrefix)
}

// LockKey addresses the same unit under the lock namespace.
func (k LogicalKey) LockKey() string {
	return k.render(cache.GenerationLockKeyPrefix)
}

// RecordKey addresses the durable row for the unit. It keeps the language,
// so each language has its own row, and leaves out the versions so a stale
// row is overwritten in place rather than left beside its replacement.
func (k LogicalKey) RecordKey() string {
	n := k.Normalized()
	return fmt.Sprintf("%s:%s:%s:%s:%s",
		cache.GeneratedContentKeyPrefix,
		n.Kind,
		cache.SanitizeKeyPart(n.SubjectID),
		cache.SanitizeKeyPart(n.Period),
		n.Language,
	)
}

func (k LogicalKey) render(prefix string) string {
	n := k.Normalized()
	return fmt.Sprintf("%s:%s:%s:%s:%s:s%d:p%d",
		prefix,
		n.Kind,
		cache.SanitizeKeyPart(n.SubjectID),
		cache.SanitizeKeyPart(n.Period),
		n.Language,
		n.SchemaVersion,
		n.PromptVersion,
	)
}

func (k LogicalKey) String() string {
	return k.CacheKey()
}

// NormalizeLanguage canonicalizes a BCP 47 tag ("EN-us" -> "en-US").
func NormalizeLanguage(lang string) (string, error) {
	lang = strings.TrimSpace(lang)
	if lang == "" {
		return "", fmt.Errorf("%w: language is required", ErrInvalidKey)
	}
	tag, err := language.Parse(lang)
	if err != nil {
		return "", fmt.Errorf("%w: language %q: %v", ErrInvalidKey, lang, err)
	}
	return tag.String(), nil
}
