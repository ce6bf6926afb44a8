package datasets

import (
	"strings"

	"github.com/Bighabz/HorizonAI/internal/core"
)

const (
	// MasterSheet is the DCWF master workbook's task and KSA sheet.
	MasterSheet = "Master Task & KSA List"

	taskNameMax = 500
	minDescLen  = 5
)

// TaskOnlyStopWords extend core.BaseStopWords with vocabulary shared by
// nearly every DCWF task.
var TaskOnlyStopWords = []string{
	"information", "security", "system", "systems", "technology", "data", "management",
	"processes", "procedures", "operations", "activities", "requirements", "capabilities",
	"personnel", "resources", "support", "ensure", "provide", "maintain", "develop",
	"implement", "conduct", "perform", "analyze", "identify", "establish", "coordinate",
	"manage", "administrative", "technical", "operational",
}

// TaskOnlyKeywordLimit caps keywords for dcwf_tasks_only.
const TaskOnlyKeywordLimit = 15

// KeywordOptions returns the keyword settings used for a dataset.
func KeywordOptions(key string) core.KeywordOptions {
	if key == "dcwf_tasks_only" {
		return core.NewKeywordOptions(TaskOnlyKeywordLimit, core.BaseStopWords, TaskOnlyStopWords)
	}
	return core.NewKeywordOptions(core.DefaultKeywordLimit, core.BaseStopWords)
}

var (
	taskIDCandidates   = []string{"Task ID", "task_id", "ID", "id", "Task_ID"}
	taskNameCandidates = []string{"Task Name", "task_name", "Name", "name", "Task_Name", "Task"}
	workRoleCandidates = []string{"Work Role", "work_role", "Role", "role", "Work_Role"}
	descCandidates     = []string{"Description", "description", "Task Description", "task_description", "Details"}
	categoryCandidates = []string{"Category", "category", "Type", "type", "Task Category"}
)

func init() {
	registerTasks()
	registerMaster()
	registerTasksOnly()
}

func registerTasks() {
	core.Register(core.Dataset{
		Info: core.DatasetInfo{
			Key:         "dcwf_tasks",
			Label:       "DCWF tasks",
			Table:       "dcwf_tasks",
			ConflictKey: "task_id",
		},
		Fields: []core.FieldSpec{
			{Key: "task_id", Candidates: taskIDCandidates, Required: true},
			{Key: "task_name", Candidates: taskNameCandidates, Required: true, MaxLen: taskNameMax},
			{Key: "work_role", Candidates: workRoleCandidates, Default: "General"},
			{Key: "task_description", Candidates: descCandidates},
			{Key: "category", Candidates: categoryCandidates, Default: "General"},
		},
	})
}

// registerMaster reads the raw master sheet and shapes rows for the
// keyword-aware dcwf_tasks table layout.
func registerMaster() {
	opts := KeywordOptions("dcwf_master")

	core.Register(core.Dataset{
		Info: core.DatasetInfo{
			Key:         "dcwf_master",
			Label:       "DCWF master task & KSA list",
			Table:       "dcwf_tasks",
			ConflictKey: "task_id",
			Sheet:       MasterSheet,
		},
		Fields: []core.FieldSpec{
			{Key: "task_id", Candidates: prepend("DCWF #", taskIDCandidates), Required: true, Normalizer: NormalizeTaskID},
			{Key: "task_name", Candidates: prepend("Task/KSA", taskNameCandidates), Required: true, MaxLen: taskNameMax, Normalizer: CollapseSpace},
			{Key: "category", Candidates: categoryCandidates, Default: "General"},
			{Key: "description", Candidates: descCandidates},
			{Key: "work_role", Candidates: workRoleCandidates, Default: "General"},
		},
		Derived: []core.DerivedField{
			{Key: "keywords", Derive: func(r core.CanonicalRecord) any {
				return core.ExtractKeywords(r.Text("task_name")+" "+r.Text("description"), opts)
			}},
			{Key: "typical_roles", Derive: func(r core.CanonicalRecord) any {
				return []string{r.Text("work_role")}
			}},
		},
	})
}

func registerTasksOnly() {
	core.Register(core.Dataset{
		Info: core.DatasetInfo{
			Key:         "dcwf_tasks_only",
			Label:       "DCWF tasks without KSAs",
			Table:       "dcwf_tasks",
			ConflictKey: "task_id",
			Sheet:       MasterSheet,
		},
		Fields: []core.FieldSpec{
			{Key: "task_id", Candidates: prepend("DCWF #", taskIDCandidates), Required: true},
			{Key: "task_name", Candidates: prepend("Task/KSA", taskNameCandidates), Required: true, MaxLen: taskNameMax},
			{Key: "task_description", Candidates: descCandidates, Fallback: "task_name"},
			{Key: "nist_sp_id", Candidates: []string{"NIST SP #", "nist_sp_id", "NIST SP ID"}},
			{Key: "work_role", Candidates: workRoleCandidates, Default: "General"},
			{Key: "category", Default: "Task"},
		},
		Filter: TaskOnlyFilter,
	})
}

// TaskOnlyFilter rejects knowledge, skill and ability entries and records
// whose description is too short to classify.
func TaskOnlyFilter(r core.CanonicalRecord) string {
	switch id, desc, nist := r.Text("task_id"), r.Text("task_description"), r.Text("nist_sp_id"); {
	case hasKSAPrefix(id):
		return "KSA id " + id
	case isKSADescription(desc):
		return "KSA description"
	case nist != "" && !strings.Contains(nist, "T0"):
		return "NIST id " + nist + " is not a task"
	case len([]rune(desc)) <= minDescLen:
		return "description too short"
	}
	return ""
}

func prepend(label string, list []string) []string {
	return append([]string{label}, list...)
}
