// Package codec converts invoice sub-records to and from the flat text stored
// in list-valued columns.
//
// Records are joined with RecordSeparator and fields with FieldSeparator, in a
// fixed positional order per record shape. No escaping is performed: a value
// containing either separator corrupts its record. Decoding a list produced by
// Encode returns the original list when no string field contains a separator
// or begins or ends with '|' or ';', and every present optional string is
// non-empty (an empty optional string decodes as absent).
//
// Decoding never fails. A record whose field count does not match its shape is
// dropped, counted (see Dropped) and logged; numbers that do not parse decode
// as zero.
package codec

import (
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"invoicecore/internal/logger"
)

const (
	RecordSeparator = ";;;"
	FieldSeparator  = "|||"
)

var dropped atomic.Int64

// Dropped returns the number of records discarded by decoders since start-up.
func Dropped() int64 {
	return dropped.Load()
}

func encodeRecords[T any](records []T, fields func(T) []string) string {
	if len(records) == 0 {
		return ""
	}
	parts := make([]string, 0, len(records))
	for _, record := range records {
		parts = append(parts, strings.Join(fields(record), FieldSeparator))
	}
	return strings.Join(parts, RecordSeparator)
}

func decodeRecords[T any](shape string, text string, arity int, build func([]string) T) []T {
	if text == "" {
		return []T{}
	}
	raw := strings.Split(text, RecordSeparator)
	records := make([]T, 0, len(raw))
	skipped := 0
	for _, record := range raw {
		fields := strings.Split(record, FieldSeparator)
		if len(fields) != arity {
			skipped++
			continue
		}
		records = append(records, build(fields))
	}
	if skipped > 0 {
		dropped.Add(int64(skipped))
		log := logger.WithComponent("codec")
		log.Warn().
			Str("shape", shape).
			Int("dropped", skipped).
			Int("kept", len(records)).
			Int("expected_fields", arity).
			Msg("dropped malformed records")
	}
	return records
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func parseFloat(raw string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0
	}
	return v
}

func formatOptional(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func parseOptional(raw string) *string {
	if raw == "" {
		return nil
	}
	return &raw
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return strconv.FormatInt(t.UnixMilli(), 10)
}

func parseTime(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	ms, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

func parseBool(raw string) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	return v
}

// SafeText reports whether s can be stored in an encoded field and read back
// unchanged.
func SafeText(s string) bool {
	if strings.Contains(s, FieldSeparator) || strings.Contains(s, RecordSeparator) {
		return false
	}
	return !strings.HasPrefix(s, "|") && !strings.HasSuffix(s, "|") &&
		!strings.HasPrefix(s, ";") && !strings.HasSuffix(s, ";")
}
