package core

import (
	"strings"
	"unicode"
)

// DefaultKeywordLimit caps the keywords kept per task.
const DefaultKeywordLimit = 10

// BaseStopWords are dropped from every keyword list.
var BaseStopWords = []string{
	"this", "that", "with", "from", "have", "will", "their", "there", "these", "those",
}

// KeywordOptions tune ExtractKeywords.
type KeywordOptions struct {
	Limit     int
	StopWords map[string]bool
}

// NewKeywordOptions builds options from a limit and one or more stop lists.
func NewKeywordOptions(limit int, stopLists ...[]string) KeywordOptions {
	stop := make(map[string]bool)
	for _, list := range stopLists {
		for _, w := range list {
			stop[w] = true
		}
	}
	return KeywordOptions{Limit: limit, StopWords: stop}
}

// ExtractKeywords returns the distinct lower-case words of text longer than
// three letters, alphabetic only, not in the stop list, in first-appearance
// order and capped at the limit.
func ExtractKeywords(text string, opts KeywordOptions) []string {
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultKeywordLimit
	}

	seen := make(map[string]bool)
	words := make([]string, 0, limit)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		if len([]rune(w)) <= 3 || !isAlpha(w) || opts.StopWords[w] || seen[w] {
			continue
		}
		seen[w] = true
		words = append(words, w)
		if len(words) == limit {
			break
		}
	}
	return words
}

func isAlpha(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return s != ""
}

// KeywordEntry is one task of a keyword index.
type KeywordEntry struct {
	Keywords []string `json:"keywords"`
	WorkRole string   `json:"work_role,omitempty"`
	TaskName string   `json:"task_name"`
	NistSPID string   `json:"nist_sp_id,omitempty"`
}

// BuildKeywordIndex maps every record's task_id to its keywords, taken from
// task_name and task_description.
func BuildKeywordIndex(records []CanonicalRecord, opts KeywordOptions) map[string]KeywordEntry {
	index := make(map[string]KeywordEntry, len(records))
	for _, r := range records {
		text := r.Text("task_name") + " " + r.Text("task_description")
		index[r.Text("task_id")] = KeywordEntry{
			Keywords: ExtractKeywords(text, opts),
			WorkRole: r.Text("work_role"),
			TaskName: r.Text("task_name"),
			NistSPID: r.Text("nist_sp_id"),
		}
	}
	return index
}
