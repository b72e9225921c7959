package cache

import (
	"encoding/base64"
	"fmt"
	"time"
)

// SanitizeKeyPart encodes dynamic key parts to be Redis-key safe and free of
// the ':' delimiter, so two different parts can never produce the same key.
func SanitizeKeyPart(s string) string { return base64.RawURLEncoding.EncodeToString([]byte(s)) }

func SubjectContentPattern(subjectID string) string {
	return fmt.Sprintf(SubjectContentKeyPattern, SanitizeKeyPart(subjectID))
}

func RateLimitWindowKey(class, requesterID string, windowStart time.Time) string {
	return fmt.Sprintf(RateLimitWindowKeyPattern, class, SanitizeKeyPart(requesterID), windowStart.Unix())
}

func RateLimitCooldownKey(requesterID string) string {
	return fmt.Sprintf(RateLimitCooldownKeyPattern, SanitizeKeyPart(requesterID))
}

func BudgetDailyKey(day time.Time) string {
	return fmt.Sprintf(BudgetDailyKeyPattern, day.UTC().Format("2006-01-02"))
}
