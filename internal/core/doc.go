// Package core turns tabular task catalogues into canonical records and
// writes them to a destination collection in batches.
//
// It has no UI or transport dependencies: sources implement [TabularSource],
// destinations implement [Store], and operator confirmation is a
// [ConfirmFunc]. The CLI, tests and any other frontend drive it the same way.
//
// # Pipeline
//
//  1. [ResolveColumns] maps each dataset field to the first candidate label
//     present in the source, or fails with [SchemaMismatchError].
//  2. [NormalizeRow] coerces cells to trimmed text, applies defaults and
//     truncation, or returns a [RecordSkipped].
//  3. [Dedupe] keeps the first record per conflict key.
//  4. [Uploader] partitions records with [Partition] and submits each batch
//     in order under a per-call timeout, halting on the first failure unless
//     configured to continue.
//
// [Service.Upload] chains these steps, asks for confirmation, reports
// progress and hands the finished [UploadResult] to a [RunRecorder].
//
// # Datasets
//
// Destination schemas register at init time with [Register]:
//
//	core.Register(core.Dataset{
//	    Info: core.DatasetInfo{Key: "dcwf_tasks", Table: "dcwf_tasks"},
//	    Fields: []core.FieldSpec{
//	        {Key: "task_id", Candidates: []string{"Task ID", "task_id"}, Required: true},
//	        {Key: "category", Candidates: []string{"Category"}, Default: "General"},
//	    },
//	})
//
// # Errors
//
// [MapError] turns technical errors into operator messages with support
// codes (SCH, BAT, NET, AUTH, FILE, RUN).
package core
