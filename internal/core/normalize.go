package core

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// DefaultConflictKey is the dedup and upsert key used when a dataset names none.
const DefaultConflictKey = "task_id"

// CellText coerces a cell value to text. Integral floats render without a
// fractional part so numeric ids read back as written in the sheet.
func CellText(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return formatFloat(x, 64)
	case float32:
		return formatFloat(float64(x), 32)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case uint64:
		return strconv.FormatUint(x, 10)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		if x.IsZero() {
			return ""
		}
		return x.Format(time.DateOnly)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

func formatFloat(f float64, bits int) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return ""
	}
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', -1, bits)
}

// Truncate shortens s to at most n characters. n <= 0 means no limit.
func Truncate(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}

// NormalizeRow turns one source row into a canonical record. It returns a
// skip instead when a required value is empty after trimming or when the
// dataset filter rejects the record. It has no side effects.
func NormalizeRow(row RawRow, mapping ColumnMapping, ds Dataset) (CanonicalRecord, *RecordSkipped) {
	rec := make(CanonicalRecord, len(ds.Fields)+len(ds.Derived))

	for _, f := range ds.Fields {
		var val string
		if label, ok := mapping[f.Key]; ok {
			if cell, ok := row.Get(label); ok {
				val = strings.TrimSpace(CellText(cell))
			}
		}
		rec[f.Key] = val
	}

	for _, f := range ds.Fields {
		val := rec.Text(f.Key)
		if val == "" && f.Fallback != "" {
			val = rec.Text(f.Fallback)
		}
		if val == "" {
			if f.Required {
				return nil, &RecordSkipped{Line: row.Line, Reason: "missing " + f.Key}
			}
			val = f.Default
		} else if f.Normalizer != nil {
			val = f.Normalizer(val)
		}
		rec[f.Key] = Truncate(val, f.MaxLen)
	}

	for _, d := range ds.Derived {
		rec[d.Key] = d.Derive(rec)
	}

	if ds.Filter != nil {
		if reason := ds.Filter(rec); reason != "" {
			return nil, &RecordSkipped{Line: row.Line, Reason: reason}
		}
	}

	return rec, nil
}

// Dedupe keeps the first record for each value of key and returns the
// kept records with the number dropped.
func Dedupe(records []CanonicalRecord, key string) ([]CanonicalRecord, int) {
	seen := make(map[string]bool, len(records))
	kept := make([]CanonicalRecord, 0, len(records))
	for _, r := range records {
		id := r.Text(key)
		if seen[id] {
			continue
		}
		seen[id] = true
		kept = append(kept, r)
	}
	return kept, len(records) - len(kept)
}

// Normalized is the outcome of preparing a source for upload.
type Normalized struct {
	Mapping    ColumnMapping
	Processed  int
	Records    []CanonicalRecord
	Skipped    []RecordSkipped
	Duplicates int
}

// Prepare resolves the source columns against ds, normalizes every row and
// removes duplicate keys. Resolution failure aborts before any row is read.
func Prepare(src TabularSource, ds Dataset) (Normalized, error) {
	mapping, err := ResolveColumns(src.Labels(), ds.Fields)
	if err != nil {
		return Normalized{}, err
	}

	rows := src.Rows()
	out := Normalized{Mapping: mapping, Processed: len(rows)}

	records := make([]CanonicalRecord, 0, len(rows))
	for _, row := range rows {
		rec, skip := NormalizeRow(row, mapping, ds)
		if skip != nil {
			out.Skipped = append(out.Skipped, *skip)
			continue
		}
		records = append(records, rec)
	}

	key := ds.Info.ConflictKey
	if key == "" {
		key = DefaultConflictKey
	}
	out.Records, out.Duplicates = Dedupe(records, key)

	return out, nil
}
