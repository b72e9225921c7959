package contentkey

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// inputHashDomain separates these digests from any other sha256 use.
const inputHashDomain = "solara.insights.input.v1"

// floatPrecision fixes decimal places so 1.0 and 1.0000000001 agree.
const floatPrecision = 6

var folder = cases.Fold()

// InputHash returns a hex digest of the canonical form of facts. Map key
// order, unicode composition, surrounding/inner whitespace runs and letter
// case never change the result. Nil values are treated as absent.
func InputHash(facts map[string]any) (string, error) {
	canonical, err := canonicalize(facts)
	if err != nil {
		return "", err
	}
	// encoding/json writes map keys in sorted order.
	raw, err := json.Marshal(canonical)
	if err != nil {
		return "", fmt.Errorf("input hash: %w", err)
	}
	sum := sha256.New()
	sum.Write([]byte(inputHashDomain))
	sum.Write([]byte{0})
	sum.Write(raw)
	return hex.EncodeToString(sum.Sum(nil)), nil
}

// NormalizeText applies NFC, trims, collapses whitespace runs and case folds.
func NormalizeText(s string) string {
	s = norm.NFC.String(s)
	s = strings.Join(strings.Fields(s), " ")
	return folder.String(s)
}

func canonicalize(v any) (any, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case string:
		return NormalizeText(t), nil
	case bool:
		return t, nil
	case int:
		return strconv.FormatInt(int64(t), 10), nil
	case int32:
		return strconv.FormatInt(int64(t), 10), nil
	case int64:
		return strconv.FormatInt(t, 10), nil
	case float32:
		return canonicalFloat(float64(t))
	case float64:
		return canonicalFloat(t)
	case *float64:
		if t == nil {
			return nil, nil
		}
		return canonicalFloat(*t)
	case time.Time:
		return t.UTC().Format(time.RFC3339), nil
	case map[string]any:
		out := make(map[string]any, len(t))
		for key, inner := range t {
			c, err := canonicalize(inner)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", key, err)
			}
			if c == nil {
				continue
			}
			out[NormalizeText(key)] = c
		}
		return out, nil
	case map[string]string:
		out := make(map[string]any, len(t))
		for key, inner := range t {
			out[NormalizeText(key)] = NormalizeText(inner)
		}
		return out, nil
	case []string:
		out := make([]any, len(t))
		for i, inner := range t {
			out[i] = NormalizeText(inner)
		}
		return out, nil
	case []any:
		out := make([]any, 0, len(t))
		for i, inner := range t {
			c, err := canonicalize(inner)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out = append(out, c)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported input type %T", v)
	}
}

func canonicalFloat(f float64) (any, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("non-finite number %v", f)
	}
	s := strconv.FormatFloat(f, 'f', floatPrecision, 64)
	if s == "-0.000000" {
		s = "0.000000"
	}
	return s, nil
}

// BirthFacts are the immutable facts natal content is derived from.
type BirthFacts struct {
	Date      string   `json:"date"`
	Time      string   `json:"time,omitempty"`
	Place     string   `json:"place,omitempty"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	Timezone  string   `json:"timezone,omitempty"`
}

func (b BirthFacts) Facts() map[string]any {
	return map[string]any{
		"date":      b.Date,
		"time":      b.Time,
		"place":     b.Place,
		"latitude":  b.Latitude,
		"longitude": b.Longitude,
		"timezone":  b.Timezone,
	}
}

// Hash is InputHash over the birth facts.
func (b BirthFacts) Hash() (string, error) {
	return InputHash(b.Facts())
}
