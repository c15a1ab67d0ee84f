package ledger

import (
	"fmt"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// FormatDate renders t as a session date (YYYY-MM-DD).
func FormatDate(t time.Time) string { return t.Format(dateLayout) }

// ParseDate accepts YYYY-MM-DD and the unpadded YYYY-M-D form and returns
// the canonical representation.
func ParseDate(s string) (string, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{dateLayout, "2006-1-2"} {
		if t, err := time.Parse(layout, s); err == nil {
			return FormatDate(t), nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidDate, s)
}

// EncodeCodes joins codes with commas, the storage form of a record.
func EncodeCodes(codes []Code) string {
	parts := make([]string, len(codes))
	for i, c := range codes {
		parts[i] = string(c)
	}
	return strings.Join(parts, ",")
}

// DecodeCodes splits a stored record. Unknown marks are kept as-is so a
// hand-edited import is never silently lost.
func DecodeCodes(s string) []Code {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	codes := make([]Code, len(parts))
	for i, p := range parts {
		codes[i] = Code(strings.TrimSpace(p))
	}
	return codes
}

// EncodeDates joins session dates with commas.
func EncodeDates(dates []string) string { return strings.Join(dates, ",") }

// DecodeDates splits a stored date list, dropping blanks.
func DecodeDates(s string) []string {
	if s == "" {
		return nil
	}
	var dates []string
	for _, d := range strings.Split(s, ",") {
		if d = strings.TrimSpace(d); d != "" {
			dates = append(dates, d)
		}
	}
	return dates
}

// AppendDates adds dates not already present, keeping insertion order.
func AppendDates(dates []string, more ...string) ([]string, error) {
	seen := make(map[string]bool, len(dates)+len(more))
	out := make([]string, 0, len(dates)+len(more))
	for _, d := range dates {
		seen[d] = true
		out = append(out, d)
	}
	for _, raw := range more {
		d, err := ParseDate(raw)
		if err != nil {
			return dates, err
		}
		if seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, d)
	}
	return out, nil
}
