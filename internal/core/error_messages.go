// Error codes reference.
//
// Technical errors are mapped to operator-facing messages with a code that
// can be quoted when asking for help. Codes are grouped by category:
//
//	CFG001  Configuration invalid          "config validation", "config load"
//	SCH001  Required column missing        "schema mismatch"
//	SCH002  Unknown dataset                "unknown dataset"
//	ROW001  Row skipped                    "skipped: missing"
//	AUTH001 Credentials rejected           "status 401", "invalid api key"
//	AUTH002 Permission denied              "status 403", "permission denied"
//	TBL001  Destination table missing      "status 404", "does not exist"
//	BAT002  Duplicate key on insert        "status 409", "duplicate key"
//	NET002  Call timed out                 "transport timeout", "deadline exceeded"
//	NET001  Connection refused             "connection refused"
//	NET003  Host not found                 "no such host"
//	BAT001  Batch rejected                 "rejected"
//	RUN001  Upload cancelled               "upload cancelled", "context canceled"
//	RUN002  Upload declined                "declined"
//	RUN003  Run not found                  "run not found"
//	FILE001 Source file missing            "no such file"
//	FILE002 Source unreadable              "parse csv", "open workbook"
//	FILE003 Source has no rows             "no header row", "empty source"
//	FILE004 Unsupported source             "unsupported source"
//	FILE005 Sheet not found                "sheet not found"
//	ERR000  Anything else
//
// Patterns match case-insensitively with strings.Contains; the first match
// wins, so specific patterns precede general ones.
package core

import (
	"fmt"
	"strings"
)

// UserMessage is an operator-facing explanation of an error.
type UserMessage struct {
	Message string // What happened
	Action  string // What to do about it
	Code    string // Support reference
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	// Configuration and schema
	{"config validation", UserMessage{"Configuration is invalid", "Fix the listed environment variables or .env entries", "CFG001"}},
	{"config load", UserMessage{"Configuration could not be loaded", "Check the environment variables named in the error", "CFG001"}},
	{"schema mismatch", UserMessage{"A required column is missing from the source", "Rename the column or add its label to the candidate table", "SCH001"}},
	{"unknown dataset", UserMessage{"The dataset is not registered", "Run the datasets command to list valid names", "SCH002"}},
	{"skipped: missing", UserMessage{"A row is missing a required value", "Fill the empty cells or accept the skip", "ROW001"}},

	// Store responses
	{"status 401", UserMessage{"The store rejected the credentials", "Check SUPABASE_KEY", "AUTH001"}},
	{"invalid api key", UserMessage{"The store rejected the credentials", "Check SUPABASE_KEY", "AUTH001"}},
	{"status 403", UserMessage{"The credentials lack permission for this table", "Use the service key or grant insert permission", "AUTH002"}},
	{"permission denied", UserMessage{"The credentials lack permission for this table", "Use the service key or grant insert permission", "AUTH002"}},
	{"status 404", UserMessage{"The destination table does not exist", "Create the table or set STORE_TABLE", "TBL001"}},
	{"does not exist", UserMessage{"The destination table does not exist", "Create the table or set STORE_TABLE", "TBL001"}},
	{"status 409", UserMessage{"A record with this task_id already exists", "Use upsert mode or clear the table first", "BAT002"}},
	{"duplicate key", UserMessage{"A record with this task_id already exists", "Use upsert mode or clear the table first", "BAT002"}},

	// Transport
	{"transport timeout", UserMessage{"The store did not answer in time", "Retry the failed batches or raise UPLOAD_PER_CALL_TIMEOUT_SECONDS", "NET002"}},
	{"deadline exceeded", UserMessage{"The store did not answer in time", "Retry the failed batches or raise UPLOAD_PER_CALL_TIMEOUT_SECONDS", "NET002"}},
	{"connection refused", UserMessage{"Unable to connect to the store", "Check SUPABASE_URL or DATABASE_URL and that the service is up", "NET001"}},
	{"no such host", UserMessage{"The store host could not be resolved", "Check the host name in SUPABASE_URL or DATABASE_URL", "NET003"}},
	{"rejected", UserMessage{"The store rejected a batch", "Inspect the failed batch in history and retry it", "BAT001"}},

	// Run lifecycle
	{"upload cancelled", UserMessage{"Upload was cancelled", "Retry the batches that were not attempted", "RUN001"}},
	{"context canceled", UserMessage{"Operation was cancelled", "Run the command again", "RUN001"}},
	{"declined", UserMessage{"Upload was declined at the confirmation prompt", "Run again and confirm, or pass --yes", "RUN002"}},
	{"run not found", UserMessage{"No run with that id is in the ledger", "Run the history command to list run ids", "RUN003"}},

	// Sources
	{"no such file", UserMessage{"The source file does not exist", "Check the path", "FILE001"}},
	{"parse csv", UserMessage{"The source is not valid CSV", "Export the sheet again as UTF-8 CSV", "FILE002"}},
	{"open workbook", UserMessage{"The workbook could not be opened", "Save it again as .xlsx", "FILE002"}},
	{"no header row", UserMessage{"The source has no header row", "Check that the sheet is not empty", "FILE003"}},
	{"empty source", UserMessage{"The source has no data rows", "Check the sheet or range", "FILE003"}},
	{"unsupported source", UserMessage{"This kind of source is not supported", "Use .csv, .xlsx or a Google Sheets URL", "FILE004"}},
	{"sheet not found", UserMessage{"The named sheet is not in the workbook", "Check the --sheet value", "FILE005"}},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Run again with LOG_LEVEL=debug and check the logs",
	Code:    "ERR000",
}

// MapError converts a technical error to an operator-facing message.
// A nil error maps to the zero UserMessage.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	lower := strings.ToLower(err.Error())
	for _, p := range errorPatterns {
		if strings.Contains(lower, p.pattern) {
			return p.msg
		}
	}

	return defaultMessage
}

// FormatError renders err as "message (code): action".
func FormatError(err error) string {
	m := MapError(err)
	if m.Code == "" {
		return ""
	}
	return fmt.Sprintf("%s (%s): %s", m.Message, m.Code, m.Action)
}
